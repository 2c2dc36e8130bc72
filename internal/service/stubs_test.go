package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/repository"
	"github.com/mahdirajaee/iot-ongoingv1/internal/telemetry"
)

// ---- Test doubles ----

// memEventRepo is an in-memory repository.EventRepo.
type memEventRepo struct {
	mu        sync.Mutex
	events    []models.Event
	appendErr error

	gotQuery repository.EventQuery
	listErr  error
}

func (m *memEventRepo) Append(ctx context.Context, e models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memEventRepo) List(ctx context.Context, q repository.EventQuery) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotQuery = q
	return append([]models.Event(nil), m.events...), m.listErr
}

func (m *memEventRepo) ofType(typ string) []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, e := range m.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// memSessionRepo is an in-memory repository.SessionRepo.
type memSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]models.Session
	createErr error
	purged    []time.Time
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]models.Session)}
}

func (m *memSessionRepo) Create(ctx context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.sessions[s.Token] = s
	return nil
}

func (m *memSessionRepo) Get(ctx context.Context, token string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSessionRepo) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memSessionRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = append(m.purged, cutoff)
	var n int64
	for k, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

// fakeTelemetry scripts poll and valve answers per endpoint name.
type fakeTelemetry struct {
	mu       sync.Mutex
	polls    map[string]int
	poll     func(name string, n int) (telemetry.Batch, error)
	setValve func(id string, status models.ValveStatus) (models.ValveState, error)
}

func (f *fakeTelemetry) Poll(ctx context.Context, ep telemetry.Endpoint) (telemetry.Batch, error) {
	f.mu.Lock()
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[ep.Name]++
	n := f.polls[ep.Name]
	f.mu.Unlock()
	if f.poll == nil {
		return telemetry.Batch{}, nil
	}
	return f.poll(ep.Name, n)
}

func (f *fakeTelemetry) SetValve(ctx context.Context, id string, status models.ValveStatus) (models.ValveState, error) {
	if f.setValve == nil {
		return models.ValveState{}, errors.New("not scripted")
	}
	return f.setValve(id, status)
}

func (f *fakeTelemetry) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[name]
}

// recordingNotifier captures forwarded alerts.
type recordingNotifier struct {
	mu  sync.Mutex
	got []models.AlertEvent
	err error
}

func (r *recordingNotifier) Notify(ctx context.Context, ev models.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return r.err
}

func (r *recordingNotifier) Close() error { return nil }

func testJournal(repo *memEventRepo) *journal {
	return newJournal(repo, logger.Nop())
}

func ctxT() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}
