package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/metrics"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	"github.com/segmentio/encoding/json"
)

// Notifier forwards recorded alerts to a downstream consumer.
type Notifier interface {
	Notify(ctx context.Context, ev models.AlertEvent) error
	Close() error
}

// Envelope is the wire format shared by every sink.
type Envelope struct {
	Type   string            `json:"type"` // always "threshold"
	Source string            `json:"source"`
	SentAt time.Time         `json:"sent_at"`
	Alert  models.AlertEvent `json:"alert"`
}

const (
	envelopeType   = "threshold"
	envelopeSource = "iot-dashboard"
)

func encode(ev models.AlertEvent, now time.Time) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:   envelopeType,
		Source: envelopeSource,
		SentAt: now.UTC(),
		Alert:  ev,
	})
}

// Sink names a notifier for logging and metrics.
type Sink struct {
	Name string
	Notifier
}

var (
	// ErrQueueFull is returned by Fanout.Notify when the delivery queue is full; the alert is dropped.
	ErrQueueFull = errors.New("notify queue full")
	// ErrClosed is returned by Fanout.Notify after Close.
	ErrClosed = errors.New("notifier closed")
)

const (
	defaultQueueSize       = 64
	defaultDeliveryTimeout = 5 * time.Second
)

// FanoutConfig bounds the delivery queue and each delivery attempt.
// Zero values use the defaults.
type FanoutConfig struct {
	QueueSize       int
	DeliveryTimeout time.Duration
}

// Fanout queues alerts and delivers each one to every sink from its own
// goroutine, so a slow broker never holds up the caller. One failing sink
// does not stop the others.
type Fanout struct {
	sinks   []Sink
	log     *logger.Logger
	timeout time.Duration

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool
	queue  chan models.AlertEvent
	done   chan struct{}
}

// NewFanout starts the delivery goroutine; Close stops it.
func NewFanout(log *logger.Logger, cfg FanoutConfig, sinks ...Sink) *Fanout {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	f := &Fanout{
		sinks:   sinks,
		log:     log,
		timeout: cfg.DeliveryTimeout,
		queue:   make(chan models.AlertEvent, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

// Len is the number of configured sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Notify enqueues ev without blocking. ctx is not used for delivery: the
// caller's request may end before the broker answers.
func (f *Fanout) Notify(ctx context.Context, ev models.AlertEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrClosed
	}
	select {
	case f.queue <- ev:
		return nil
	default:
		metrics.AlertsForwarded.WithLabelValues("queue", "dropped").Inc()
		if f.log != nil {
			f.log.Warnw("alert_forward_dropped", "alert_id", ev.ID, "queue_size", cap(f.queue))
		}
		return ErrQueueFull
	}
}

func (f *Fanout) run() {
	defer close(f.done)
	for ev := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		_ = f.deliver(ctx, ev)
		cancel()
	}
}

// deliver sends ev to every sink and joins their errors.
func (f *Fanout) deliver(ctx context.Context, ev models.AlertEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			metrics.AlertsForwarded.WithLabelValues(s.Name, "failed").Inc()
			if f.log != nil {
				f.log.Errorw("alert_forward_failed", "sink", s.Name, "alert_id", ev.ID, "err", err)
			}
			errs = append(errs, err)
			continue
		}
		metrics.AlertsForwarded.WithLabelValues(s.Name, "ok").Inc()
	}
	return errors.Join(errs...)
}

// Close delivers what is already queued, then closes every sink.
func (f *Fanout) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	<-f.done

	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
