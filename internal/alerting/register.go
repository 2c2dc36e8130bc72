package alerting

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	"github.com/samber/lo"
)

var (
	ErrDuplicateID = errors.New("alert id already recorded")
	ErrNotFound    = errors.New("alert not found")
	ErrEmptyID     = errors.New("alert id is empty")
)

// Register is the in-memory alert log of a dashboard session. Entries are
// kept newest first and never removed; only their status changes.
type Register struct {
	mu     sync.RWMutex
	alerts []*models.AlertEvent
	byID   map[string]*models.AlertEvent
	now    func() time.Time
}

func NewRegister() *Register {
	return &Register{
		byID: make(map[string]*models.AlertEvent),
		now:  time.Now,
	}
}

// Record prepends ev. The existing order is left untouched.
func (r *Register) Record(ev models.AlertEvent) error {
	if ev.ID == "" {
		return ErrEmptyID
	}
	if ev.Status == "" {
		ev.Status = models.AlertActive
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[ev.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, ev.ID)
	}
	stored := ev
	r.alerts = append([]*models.AlertEvent{&stored}, r.alerts...)
	r.byID[ev.ID] = &stored
	return nil
}

// Resolve marks the alert resolved. Resolving an already resolved alert is
// a no-op and returns the stored event.
func (r *Register) Resolve(id string) (models.AlertEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.byID[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if ev.Status != models.AlertResolved {
		at := r.now().UTC()
		ev.Status = models.AlertResolved
		ev.ResolvedAt = &at
	}
	return copyAlert(ev), nil
}

// Get returns the alert with the given id.
func (r *Register) Get(id string) (models.AlertEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.byID[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyAlert(ev), nil
}

// Counts aggregates active alerts by severity and the alerts resolved on
// the calendar day of now.
func (r *Register) Counts(now time.Time) models.AlertCounts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := lo.Filter(r.alerts, func(a *models.AlertEvent, _ int) bool {
		return a.Status == models.AlertActive
	})
	bySeverity := lo.GroupBy(active, func(a *models.AlertEvent) models.Severity {
		return a.Severity
	})

	c := models.AlertCounts{
		Critical: len(bySeverity[models.SeverityCritical]),
		Warning:  len(bySeverity[models.SeverityWarning]),
		Info:     len(bySeverity[models.SeverityInfo]),
	}
	c.Total = c.Critical + c.Warning + c.Info
	c.ResolvedToday = lo.CountBy(r.alerts, func(a *models.AlertEvent) bool {
		return a.Status == models.AlertResolved && a.ResolvedAt != nil && sameDay(*a.ResolvedAt, now)
	})
	return c
}

// Recent returns at most n active alerts, newest first.
func (r *Register) Recent(n int) []models.AlertEvent {
	if n <= 0 {
		return []models.AlertEvent{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AlertEvent, 0, n)
	for _, a := range r.alerts {
		if a.Status != models.AlertActive {
			continue
		}
		out = append(out, copyAlert(a))
		if len(out) == n {
			break
		}
	}
	return out
}

// All returns every alert, newest first.
func (r *Register) All() []models.AlertEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.alerts, func(a *models.AlertEvent, _ int) models.AlertEvent {
		return copyAlert(a)
	})
}

// Len is the number of recorded alerts.
func (r *Register) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}

func copyAlert(a *models.AlertEvent) models.AlertEvent {
	out := *a
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
