package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/alerting"
	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/notify"
	"github.com/mahdirajaee/iot-ongoingv1/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
)

var tickAt = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestController(tel Telemetry, events *memEventRepo, n *recordingNotifier, cfg ControllerConfig) *Controller {
	var notifier notify.Notifier
	if n != nil {
		notifier = n
	}
	c := NewController(tel, alerting.NewEvaluator(alerting.DefaultThresholds()), alerting.NewRegister(), testJournal(events), notifier, logger.Nop(), cfg)
	c.now = func() time.Time { return tickAt }
	return c
}

func apiBatch(temp, pressure float64, valves ...models.ValveState) telemetry.Batch {
	return telemetry.Batch{
		Readings: []models.Reading{
			{Metric: models.MetricTemperature, Value: temp, Timestamp: tickAt, Location: "Section A"},
			{Metric: models.MetricPressure, Value: pressure, Timestamp: tickAt, Location: "Section B"},
		},
		Valves: valves,
	}
}

func TestTick_HighTemperatureRaisesCriticalAlert(t *testing.T) {
	t.Parallel()

	tel := &fakeTelemetry{poll: func(name string, n int) (telemetry.Batch, error) {
		if name == telemetry.APIData.Name {
			return apiBatch(90, 1100), nil
		}
		return telemetry.Batch{}, nil
	}}
	events := &memEventRepo{}
	notifier := &recordingNotifier{}
	c := newTestController(tel, events, notifier, ControllerConfig{})

	ctx, cancel := ctxT()
	defer cancel()
	if err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	counts := c.Register().Counts(tickAt)
	if counts.Critical != 1 || counts.Total != 1 {
		t.Fatalf("want one critical alert, got %+v", counts)
	}
	recent := c.Register().Recent(1)
	if len(recent) != 1 {
		t.Fatalf("Recent(1): want 1, got %d", len(recent))
	}
	a := recent[0]
	if a.Title != "High Temperature" || a.Severity != models.SeverityCritical || a.Message != "Temperature reached 90°C" {
		t.Errorf("unexpected alert %+v", a)
	}
	if !strings.HasPrefix(a.ID, alertIDPrefix) || a.Location != "Section A" || !a.CreatedAt.Equal(tickAt) {
		t.Errorf("unexpected envelope %+v", a)
	}

	if got := events.ofType(models.EventAlert); len(got) != 1 {
		t.Errorf("journal: want 1 ALERT entry, got %d", len(got))
	}
	if len(notifier.got) != 1 || notifier.got[0].ID != a.ID {
		t.Errorf("notifier: want the recorded alert, got %+v", notifier.got)
	}
	if tel.count(telemetry.LatestPressure.Name) != 1 {
		t.Errorf("pressure endpoint must be polled in the same tick")
	}
}

func TestTick_NormalReadingsRaiseNothingAndFillSeries(t *testing.T) {
	t.Parallel()

	tel := &fakeTelemetry{poll: func(name string, n int) (telemetry.Batch, error) {
		if name == telemetry.APIData.Name {
			return apiBatch(70, 1000, models.ValveState{ID: "VA1", Status: models.ValveOpen, LastUpdated: tickAt}), nil
		}
		return telemetry.Batch{Readings: []models.Reading{{Metric: models.MetricPressure, Value: 1150, Timestamp: tickAt, Location: "Section B"}}}, nil
	}}
	c := newTestController(tel, &memEventRepo{}, nil, ControllerConfig{})

	ctx, cancel := ctxT()
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := c.Tick(ctx); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}

	if n := c.Register().Len(); n != 0 {
		t.Fatalf("no alert expected, got %d", n)
	}
	snap := c.Snapshot(ctx)
	if snap.Temperature == nil || snap.Temperature.Value != 70 {
		t.Errorf("temperature: %+v", snap.Temperature)
	}
	if snap.Pressure == nil || snap.Pressure.Value != 1150 {
		t.Errorf("latest pressure must come from the time-series endpoint: %+v", snap.Pressure)
	}
	if len(snap.Series[models.MetricTemperature]) != 3 || len(snap.Series[models.MetricPressure]) != 6 {
		t.Errorf("series lengths: %d/%d", len(snap.Series[models.MetricTemperature]), len(snap.Series[models.MetricPressure]))
	}
	if len(snap.Valves) != 1 || snap.ValvesOpen != 1 || snap.ValvesClosed != 0 {
		t.Errorf("valves: %+v", snap.Valves)
	}
}

func TestTick_TimeSeriesPressureIsEvaluated(t *testing.T) {
	t.Parallel()

	tel := &fakeTelemetry{poll: func(name string, n int) (telemetry.Batch, error) {
		if name == telemetry.LatestPressure.Name {
			return telemetry.Batch{Readings: []models.Reading{{Metric: models.MetricPressure, Value: 1350, Timestamp: tickAt, Location: "Section B"}}}, nil
		}
		return telemetry.Batch{}, nil
	}}
	events := &memEventRepo{}
	c := newTestController(tel, events, nil, ControllerConfig{})

	ctx, cancel := ctxT()
	defer cancel()
	if err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	counts := c.Register().Counts(tickAt)
	if counts.Critical != 1 || counts.Total != 1 {
		t.Fatalf("want one critical alert from the time-series reading, got %+v", counts)
	}
	a := c.Register().Recent(1)[0]
	if a.Title != "High Pressure" || a.Message != "Pressure reached 1350 kPa" || a.Location != "Section B" {
		t.Errorf("unexpected alert %+v", a)
	}
	if snap := c.Snapshot(ctx); snap.Pressure == nil || snap.Pressure.Value != 1350 {
		t.Errorf("pressure must still be displayed: %+v", snap.Pressure)
	}
	if got := events.ofType(models.EventAlert); len(got) != 1 {
		t.Errorf("journal: want 1 ALERT entry, got %d", len(got))
	}
}

func TestTick_PressureEndpointFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	tel := &fakeTelemetry{poll: func(name string, n int) (telemetry.Batch, error) {
		if name == telemetry.LatestPressure.Name {
			return telemetry.Batch{}, &telemetry.NetworkError{Endpoint: name, StatusCode: 503, Err: telemetry.ErrUnexpectedStatus}
		}
		return apiBatch(70, 1000), nil
	}}
	c := newTestController(tel, &memEventRepo{}, nil, ControllerConfig{})

	ctx, cancel := ctxT()
	defer cancel()
	if err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick must ignore time-series failures: %v", err)
	}
	if c.LastError() != nil {
		t.Fatalf("LastError must stay nil: %v", c.LastError())
	}
}

func TestRun_ReconnectsOnlyAfterBackoffDelay(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg, err := telemetry.NewEndpointRegistry(map[string]string{
		telemetry.ServiceAPI:        srv.URL,
		telemetry.ServiceTimeSeries: srv.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	events := &memEventRepo{}
	c := newTestController(telemetry.NewClient(reg, time.Second), events, nil, ControllerConfig{})

	waits := make(chan time.Duration, 1)
	fire := make(chan time.Time)
	c.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return fire
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if d := waitFor(t, waits); d != DefaultReconnectDelay {
		t.Fatalf("delay: want %v, got %v", DefaultReconnectDelay, d)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("hits before delay: want 1, got %d", got)
	}
	if s := c.Status(); s != models.StatusDisconnected {
		t.Fatalf("status: want disconnected, got %s", s)
	}
	var ne *telemetry.NetworkError
	if !errors.As(c.LastError(), &ne) || ne.StatusCode != http.StatusInternalServerError {
		t.Fatalf("LastError: want 500 NetworkError, got %v", c.LastError())
	}

	fire <- time.Now()
	waitFor(t, waits)
	if got := hits.Load(); got != 2 {
		t.Fatalf("exactly one reconnect expected, got %d hits", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if got := events.ofType(models.EventConnection); len(got) == 0 {
		t.Error("connection changes must be journaled")
	}
}

func TestRun_PollsOnTickAndDisconnectsOnFailure(t *testing.T) {
	t.Parallel()

	tel := &fakeTelemetry{poll: func(name string, n int) (telemetry.Batch, error) {
		if name == telemetry.APIData.Name && n >= 3 {
			return telemetry.Batch{}, &telemetry.NetworkError{Endpoint: name, Err: errors.New("connection refused")}
		}
		return apiBatch(70, 1000), nil
	}}
	c := newTestController(tel, &memEventRepo{}, nil, ControllerConfig{Interval: time.Second})

	ticks := make(chan time.Time)
	var gotInterval time.Duration
	c.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		gotInterval = d
		return ticks, func() {}
	}
	waits := make(chan time.Duration, 1)
	c.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return make(chan time.Time)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	ticks <- time.Now() // blocks until the loop is running, so the connect poll is done
	if s := c.Status(); s != models.StatusConnected {
		t.Fatalf("status after successful connect: %s", s)
	}
	if gotInterval != time.Second {
		t.Errorf("ticker interval: want 1s, got %v", gotInterval)
	}
	ticks <- time.Now()

	waitFor(t, waits)
	if s := c.Status(); s != models.StatusDisconnected {
		t.Fatalf("status after failed tick: %s", s)
	}
	if n := tel.count(telemetry.APIData.Name); n != 3 {
		t.Fatalf("api polls: want 3, got %d", n)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_StopsWhenRetriesExhausted(t *testing.T) {
	t.Parallel()

	tel := &fakeTelemetry{poll: func(name string, n int) (telemetry.Batch, error) {
		return telemetry.Batch{}, errors.New("down")
	}}
	policy, err := NewBackOff(BackoffConfig{Delay: time.Millisecond, MaxRetries: 2})
	if err != nil {
		t.Fatal(err)
	}
	c := newTestController(tel, &memEventRepo{}, nil, ControllerConfig{Backoff: policy})
	c.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	ctx, cancel := ctxT()
	defer cancel()
	if err := c.Run(ctx); !errors.Is(err, ErrReconnectExhausted) {
		t.Fatalf("want ErrReconnectExhausted, got %v", err)
	}
	if n := tel.count(telemetry.APIData.Name); n != 3 {
		t.Fatalf("connect + 2 retries expected, got %d polls", n)
	}
}

func TestNewBackOff(t *testing.T) {
	t.Parallel()

	b, err := NewBackOff(BackoffConfig{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if d := b.NextBackOff(); d != DefaultReconnectDelay {
			t.Fatalf("constant: want %v, got %v", DefaultReconnectDelay, d)
		}
	}

	b, err = NewBackOff(BackoffConfig{Policy: "exponential", Delay: time.Second, MaxInterval: 4 * time.Second, Multiplier: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		d := b.NextBackOff()
		if d == backoff.Stop || d <= 0 || d > 6*time.Second {
			t.Fatalf("exponential step %d out of range: %v", i, d)
		}
	}

	b, _ = NewBackOff(BackoffConfig{Delay: time.Second, MaxRetries: 1})
	if d := b.NextBackOff(); d != time.Second {
		t.Fatalf("first retry: %v", d)
	}
	if d := b.NextBackOff(); d != backoff.Stop {
		t.Fatalf("want Stop after max retries, got %v", d)
	}

	if _, err := NewBackOff(BackoffConfig{Policy: "fibonacci"}); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestToggleValve_ConfirmThenUpdate(t *testing.T) {
	t.Parallel()

	tel := &fakeTelemetry{setValve: func(id string, status models.ValveStatus) (models.ValveState, error) {
		return models.ValveState{ID: id, Status: status, LastUpdated: tickAt}, nil
	}}
	events := &memEventRepo{}
	c := newTestController(tel, events, nil, ControllerConfig{})

	ctx, cancel := ctxT()
	defer cancel()
	st, err := c.ToggleValve(ctx, "VA1", models.ValveOpen)
	if err != nil {
		t.Fatalf("ToggleValve: %v", err)
	}
	if st.Status != models.ValveOpen {
		t.Fatalf("unexpected state %+v", st)
	}
	valves := c.Valves()
	if len(valves) != 1 || valves[0].Status != models.ValveOpen {
		t.Fatalf("local state not updated: %+v", valves)
	}
	entries := events.ofType(models.EventValve)
	if len(entries) != 1 || entries[0].Description != "Valve VA1 opened" {
		t.Fatalf("journal: %+v", entries)
	}
}

func TestToggleValve_FailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	calls := 0
	tel := &fakeTelemetry{setValve: func(id string, status models.ValveStatus) (models.ValveState, error) {
		calls++
		return models.ValveState{}, &telemetry.NetworkError{Endpoint: "valve-control", StatusCode: 502, Err: telemetry.ErrUnexpectedStatus}
	}}
	c := newTestController(tel, &memEventRepo{}, nil, ControllerConfig{})
	c.setValve(models.ValveState{ID: "VB1", Status: models.ValveClosed, LastUpdated: tickAt})

	ctx, cancel := ctxT()
	defer cancel()
	_, err := c.ToggleValve(ctx, "VB1", models.ValveOpen)
	if !errors.Is(err, ErrValveControl) {
		t.Fatalf("want ErrValveControl, got %v", err)
	}
	var ne *telemetry.NetworkError
	if !errors.As(err, &ne) || ne.StatusCode != 502 {
		t.Fatalf("network cause must be preserved: %v", err)
	}
	if calls != 1 {
		t.Fatalf("no retry expected, got %d calls", calls)
	}
	if v := c.Valves(); v[0].Status != models.ValveClosed {
		t.Fatalf("state changed on failure: %+v", v)
	}
}

func TestRaise_NotifierFailureStillRecords(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{err: errors.New("broker down")}
	c := newTestController(&fakeTelemetry{}, &memEventRepo{}, n, ControllerConfig{})

	ctx, cancel := ctxT()
	defer cancel()
	ev, err := c.Raise(ctx, models.AlertEvent{Severity: models.SeverityInfo, Title: "System Notice", Location: "Section C"})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if ev.Status != models.AlertActive || !ev.CreatedAt.Equal(tickAt) {
		t.Errorf("defaults not applied: %+v", ev)
	}
	if _, err := c.Register().Get(ev.ID); err != nil {
		t.Fatalf("alert not recorded: %v", err)
	}
}

// stallingSink never answers until ctx ends, like a broker that is down.
type stallingSink struct{ calls atomic.Int32 }

func (s *stallingSink) Notify(ctx context.Context, ev models.AlertEvent) error {
	s.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *stallingSink) Close() error { return nil }

func TestTick_StalledBrokerDoesNotDelayPolling(t *testing.T) {
	t.Parallel()

	sink := &stallingSink{}
	fan := notify.NewFanout(nil, notify.FanoutConfig{DeliveryTimeout: 200 * time.Millisecond}, notify.Sink{Name: "stalled", Notifier: sink})
	defer func() { _ = fan.Close() }()

	tel := &fakeTelemetry{poll: func(name string, n int) (telemetry.Batch, error) {
		if name == telemetry.APIData.Name {
			return apiBatch(90, 1350), nil
		}
		return telemetry.Batch{}, nil
	}}
	c := NewController(tel, alerting.NewEvaluator(alerting.DefaultThresholds()), alerting.NewRegister(), testJournal(&memEventRepo{}), fan, logger.Nop(), ControllerConfig{})

	ctx, cancel := ctxT()
	defer cancel()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.Tick(ctx); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("three ticks took %v with a stalled broker", elapsed)
	}
	if n := c.Register().Len(); n != 6 {
		t.Fatalf("alerts must be recorded regardless of forwarding: want 6, got %d", n)
	}
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}
