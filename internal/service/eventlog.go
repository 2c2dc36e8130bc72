package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/repository"

	"github.com/google/uuid"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidLimit     = errors.New("invalid limit: must be >= 0")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares the repository query and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (repository.EventQuery, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventQuery{}, errInvalidTimeRange
	}
	if f.Limit < 0 {
		return repository.EventQuery{}, errInvalidLimit
	}

	return repository.EventQuery{
		From:  from,
		To:    to,
		Type:  normalizeEventType(f.Type),
		Limit: f.Limit,
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}

// journal appends activity entries. A failed write is logged and never
// interrupts the operation that produced it.
type journal struct {
	repo repository.EventRepo
	log  *logger.Logger
	now  func() time.Time
}

func newJournal(repo repository.EventRepo, log *logger.Logger) *journal {
	if log == nil {
		log = logger.Nop()
	}
	return &journal{repo: repo, log: log, now: time.Now}
}

func (j *journal) append(ctx context.Context, typ, description string, meta any) {
	if j == nil || j.repo == nil {
		return
	}
	err := j.repo.Append(ctx, models.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  j.now().UTC(),
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		j.log.Warnw("journal_append_failed", "type", typ, "err", err)
	}
}

// logger returns the journal's logger, or a no-op one for a nil journal.
func (j *journal) logger() *logger.Logger {
	if j == nil {
		return logger.Nop()
	}
	return j.log
}
