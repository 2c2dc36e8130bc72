package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/alerting"
	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/metrics"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/notify"
	"github.com/mahdirajaee/iot-ongoingv1/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	DefaultPollInterval   = 3 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	alertIDPrefix         = "ALT-"
)

var (
	// ErrReconnectExhausted ends Run when the reconnect policy gives up.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrValveControl wraps a failed valve command; local state is unchanged.
	ErrValveControl = errors.New("valve control failed")
)

// Telemetry is the upstream the controller polls and commands.
type Telemetry interface {
	Poll(ctx context.Context, ep telemetry.Endpoint) (telemetry.Batch, error)
	SetValve(ctx context.Context, id string, status models.ValveStatus) (models.ValveState, error)
}

type ControllerConfig struct {
	Interval time.Duration   // tick period; 0 means DefaultPollInterval
	Backoff  backoff.BackOff // reconnect policy; nil means constant DefaultReconnectDelay
}

// BackoffConfig describes a reconnect policy in configuration terms.
type BackoffConfig struct {
	Policy      string // "constant" (default) or "exponential"
	Delay       time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	MaxRetries  uint64 // 0 means unbounded
}

// NewBackOff turns cfg into a backoff.BackOff.
func NewBackOff(cfg BackoffConfig) (backoff.BackOff, error) {
	delay := cfg.Delay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	var b backoff.BackOff
	switch cfg.Policy {
	case "", "constant":
		b = backoff.NewConstantBackOff(delay)
	case "exponential":
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = delay
		if cfg.MaxInterval > 0 {
			exp.MaxInterval = cfg.MaxInterval
		}
		if cfg.Multiplier > 1 {
			exp.Multiplier = cfg.Multiplier
		}
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	default:
		return nil, fmt.Errorf("unknown reconnect policy %q", cfg.Policy)
	}

	if cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, cfg.MaxRetries)
	}
	return b, nil
}

// Controller owns one dashboard session: connection status, latest readings,
// chart series, valve states and the alert register.
type Controller struct {
	client    Telemetry
	evaluator *alerting.Evaluator
	register  *alerting.Register
	journal   *journal
	notifier  notify.Notifier
	log       *logger.Logger

	interval time.Duration
	backoff  backoff.BackOff

	now       func() time.Time
	after     func(time.Duration) <-chan time.Time
	newTicker func(time.Duration) (<-chan time.Time, func())

	// ingest serializes batches from the poll loop and the simulator.
	ingest sync.Mutex

	mu      sync.RWMutex
	status  models.ConnectionStatus
	latest  map[models.Metric]models.Reading
	series  *seriesBuffer
	valves  map[string]models.ValveState
	lastErr error
}

func NewController(client Telemetry, evaluator *alerting.Evaluator, register *alerting.Register, j *journal, notifier notify.Notifier, log *logger.Logger, cfg ControllerConfig) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.NewConstantBackOff(DefaultReconnectDelay)
	}
	if register == nil {
		register = alerting.NewRegister()
	}
	if evaluator == nil {
		evaluator = alerting.NewEvaluator(alerting.DefaultThresholds())
	}
	return &Controller{
		client:    client,
		evaluator: evaluator,
		register:  register,
		journal:   j,
		notifier:  notifier,
		log:       log,
		interval:  cfg.Interval,
		backoff:   cfg.Backoff,
		now:       time.Now,
		after:     time.After,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		status: models.StatusDisconnected,
		latest: make(map[models.Metric]models.Reading),
		series: newSeriesBuffer(seriesCapacity),
		valves: make(map[string]models.ValveState),
	}
}

// Register exposes the alert register owned by this session.
func (c *Controller) Register() *alerting.Register { return c.register }

// Run connects, polls every interval and reconnects per the backoff policy
// after a failed poll. It returns nil when ctx is canceled and
// ErrReconnectExhausted when the policy stops.
func (c *Controller) Run(ctx context.Context) error {
	c.backoff.Reset()
	for {
		c.setStatus(ctx, models.StatusConnecting)
		if err := c.Tick(ctx); err == nil {
			c.setStatus(ctx, models.StatusConnected)
			c.backoff.Reset()
			c.pollLoop(ctx)
		}
		if ctx.Err() != nil {
			c.setStatus(context.WithoutCancel(ctx), models.StatusDisconnected)
			return nil
		}
		c.setStatus(ctx, models.StatusDisconnected)

		wait := c.backoff.NextBackOff()
		if wait == backoff.Stop {
			c.log.Errorw("reconnect_exhausted", "last_err", c.LastError())
			return ErrReconnectExhausted
		}
		c.log.Infow("reconnect_scheduled", "in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-c.after(wait):
			metrics.ReconnectAttempts.Inc()
		}
	}
}

// pollLoop ticks until a poll fails or ctx is canceled.
func (c *Controller) pollLoop(ctx context.Context) {
	ticks, stop := c.newTicker(c.interval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if err := c.Tick(ctx); err != nil {
				return
			}
		}
	}
}

// Tick performs one poll cycle. Readings from both endpoints are displayed
// and evaluated. Only an api-data failure is reported; the time-series
// endpoint is best effort.
func (c *Controller) Tick(ctx context.Context) error {
	b, err := c.poll(ctx, telemetry.APIData)
	if err != nil {
		c.setLastError(err)
		c.log.Warnw("poll_failed", "endpoint", telemetry.APIData.Name, "err", err)
		return err
	}
	c.setLastError(nil)
	c.Ingest(ctx, b)

	pb, err := c.poll(ctx, telemetry.LatestPressure)
	if err != nil {
		c.log.Debugw("poll_failed", "endpoint", telemetry.LatestPressure.Name, "err", err)
		return nil
	}
	c.Ingest(ctx, pb)
	return nil
}

func (c *Controller) poll(ctx context.Context, ep telemetry.Endpoint) (telemetry.Batch, error) {
	start := time.Now()
	b, err := c.client.Poll(ctx, ep)
	metrics.PollDuration.WithLabelValues(ep.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PollsTotal.WithLabelValues(ep.Name, "failed").Inc()
		return b, err
	}
	metrics.PollsTotal.WithLabelValues(ep.Name, "ok").Inc()
	if n := len(b.Dropped); n > 0 {
		metrics.RecordsDropped.WithLabelValues(ep.Name).Add(float64(n))
		for _, d := range b.Dropped {
			c.log.Debugw("record_dropped", "endpoint", ep.Name, "err", d)
		}
	}
	return b, nil
}

// Ingest pushes readings to the charts, evaluates them and applies valve
// records. Both the poll loop and the simulator feed it.
func (c *Controller) Ingest(ctx context.Context, b telemetry.Batch) {
	c.ingest.Lock()
	defer c.ingest.Unlock()

	c.display(b.Readings)
	for _, r := range b.Readings {
		if ev := c.evaluator.Evaluate(r); ev != nil {
			if _, err := c.Raise(ctx, *ev); err != nil {
				c.log.Errorw("alert_record_failed", "err", err)
			}
		}
	}

	c.mu.Lock()
	for _, v := range b.Valves {
		c.valves[v.ID] = v
	}
	c.mu.Unlock()
}

func (c *Controller) display(readings []models.Reading) {
	if len(readings) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range readings {
		c.latest[r.Metric] = r
		c.series.push(r)
		metrics.LastReading.WithLabelValues(string(r.Metric)).Set(r.Value)
	}
}

// Raise stamps an id on ev, records it and forwards it to the journal and
// the notifier.
func (c *Controller) Raise(ctx context.Context, ev models.AlertEvent) (models.AlertEvent, error) {
	ev.ID = alertIDPrefix + uuid.NewString()
	if ev.Status == "" {
		ev.Status = models.AlertActive
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = c.now().UTC()
	}
	if err := c.register.Record(ev); err != nil {
		return models.AlertEvent{}, err
	}
	metrics.AlertsRaised.WithLabelValues(string(ev.Severity)).Inc()
	c.log.Infow("alert_raised", "id", ev.ID, "severity", ev.Severity, "title", ev.Title, "location", ev.Location)

	c.journal.append(ctx, models.EventAlert, fmt.Sprintf("%s at %s", ev.Title, ev.Location), map[string]any{
		"id":       ev.ID,
		"severity": ev.Severity,
		"message":  ev.Message,
	})
	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, ev); err != nil {
			c.log.Warnw("alert_notify_failed", "id", ev.ID, "err", err)
		}
	}
	return ev, nil
}

// ToggleValve commands the api-server and updates local state only after it
// confirms. There is no retry.
func (c *Controller) ToggleValve(ctx context.Context, id string, status models.ValveStatus) (models.ValveState, error) {
	st, err := c.client.SetValve(ctx, id, status)
	if err != nil {
		metrics.ValveCommands.WithLabelValues(string(status), "failed").Inc()
		c.log.Warnw("valve_command_failed", "valve", id, "status", status, "err", err)
		return models.ValveState{}, fmt.Errorf("%w: %s: %w", ErrValveControl, id, err)
	}
	metrics.ValveCommands.WithLabelValues(string(status), "ok").Inc()

	c.setValve(st)
	c.journal.append(ctx, models.EventValve, fmt.Sprintf("Valve %s %s", st.ID, verbFor(st.Status)), map[string]any{
		"id":     st.ID,
		"status": st.Status,
	})
	return st, nil
}

func (c *Controller) setValve(st models.ValveState) {
	c.mu.Lock()
	c.valves[st.ID] = st
	c.mu.Unlock()
}

func verbFor(s models.ValveStatus) string {
	if s == models.ValveOpen {
		return "opened"
	}
	return "closed"
}

// Valves returns all known valves sorted by id.
func (c *Controller) Valves() []models.ValveState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valvesLocked()
}

func (c *Controller) valvesLocked() []models.ValveState {
	out := make([]models.ValveState, 0, len(c.valves))
	for _, v := range c.valves {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Controller) Status() models.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// LastError is the error of the most recent failed api-data poll, nil after a success.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Controller) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

var allStatuses = []models.ConnectionStatus{models.StatusDisconnected, models.StatusConnecting, models.StatusConnected}

func (c *Controller) setStatus(ctx context.Context, s models.ConnectionStatus) {
	c.mu.Lock()
	prev := c.status
	c.status = s
	c.mu.Unlock()

	for _, st := range allStatuses {
		v := 0.0
		if st == s {
			v = 1
		}
		metrics.ConnectionStatus.WithLabelValues(string(st)).Set(v)
	}
	if prev == s {
		return
	}
	c.log.Infow("connection_status", "from", prev, "to", s)
	if s != models.StatusConnecting {
		meta := map[string]any{"from": prev, "to": s}
		if err := c.LastError(); err != nil && s == models.StatusDisconnected {
			meta["err"] = err.Error()
		}
		c.journal.append(ctx, models.EventConnection, "Connection "+string(s), meta)
	}
}
