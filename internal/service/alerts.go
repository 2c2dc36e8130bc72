package service

import (
	"context"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/alerting"
	"github.com/mahdirajaee/iot-ongoingv1/internal/metrics"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
)

type AlertService struct {
	register *alerting.Register
	journal  *journal
	now      func() time.Time
}

func NewAlertService(register *alerting.Register, j *journal) *AlertService {
	return &AlertService{register: register, journal: j, now: time.Now}
}

// Recent returns at most limit active alerts, newest first.
func (s *AlertService) Recent(limit int) []models.AlertEvent {
	return s.register.Recent(limit)
}

func (s *AlertService) All() []models.AlertEvent {
	return s.register.All()
}

func (s *AlertService) Get(id string) (models.AlertEvent, error) {
	return s.register.Get(id)
}

func (s *AlertService) Counts() models.AlertCounts {
	return s.register.Counts(s.now())
}

// Resolve marks the alert resolved. Resolving twice is a no-op that returns
// the stored alert; only the first call is journaled.
func (s *AlertService) Resolve(ctx context.Context, id string) (models.AlertEvent, error) {
	before, err := s.register.Get(id)
	if err != nil {
		return models.AlertEvent{}, err
	}
	ev, err := s.register.Resolve(id)
	if err != nil {
		return models.AlertEvent{}, err
	}
	if before.Status == models.AlertActive {
		metrics.AlertsResolved.Inc()
		s.journal.append(ctx, models.EventResolve, "Resolved: "+ev.Title, map[string]any{"id": ev.ID})
	}
	return ev, nil
}
