package service

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/telemetry"
)

// ----------- Simulation constants -----------
const (
	simTempMin      = 70.0
	simTempSpan     = 20.0
	simPressureMin  = 1000.0
	simPressureSpan = 300.0

	simValveChance = 0.2 // per tick
	simAlertChance = 0.1 // per tick
)

var (
	simValves    = []string{"VA1", "VB1", "VC1"}
	simSeverity  = []models.Severity{models.SeverityInfo, models.SeverityWarning, models.SeverityCritical}
	simLocations = []string{"Section A", "Section B", "Section C"}
)

// Feed is where synthetic telemetry goes; the Controller implements it.
type Feed interface {
	Status() models.ConnectionStatus
	Ingest(ctx context.Context, b telemetry.Batch)
	Raise(ctx context.Context, ev models.AlertEvent) (models.AlertEvent, error)
}

// SimulatorService generates demo telemetry while the upstream is not connected.
type SimulatorService struct {
	feed Feed
	log  *logger.Logger

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// NewSimulatorService returns a simulator; a nil rnd is seeded from the clock.
func NewSimulatorService(feed Feed, rnd *rand.Rand, log *logger.Logger) *SimulatorService {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SimulatorService{feed: feed, log: log, rnd: rnd}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if s.feed.Status() == models.StatusConnected {
				continue
			}
			s.Step(ctx, now)
		}
	}
}

// Step produces one tick of synthetic data and feeds it.
func (s *SimulatorService) Step(ctx context.Context, now time.Time) {
	b, alert := s.generate(now.UTC())
	s.feed.Ingest(ctx, b)
	if alert != nil {
		if _, err := s.feed.Raise(ctx, *alert); err != nil {
			s.log.Errorw("alert_record_failed", "source", "simulator", "err", err)
		}
	}
}

func (s *SimulatorService) generate(now time.Time) (telemetry.Batch, *models.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp := simTempMin + s.rnd.Float64()*simTempSpan
	pressure := simPressureMin + s.rnd.Float64()*simPressureSpan

	b := telemetry.Batch{
		Readings: []models.Reading{
			{Metric: models.MetricTemperature, Value: math.Round(temp*10) / 10, Timestamp: now, Location: "Section A"},
			{Metric: models.MetricPressure, Value: math.Round(pressure), Timestamp: now, Location: "Section B"},
		},
	}

	if s.rnd.Float64() < simValveChance {
		status := models.ValveClosed
		id := simValves[s.rnd.Intn(len(simValves))]
		if s.rnd.Float64() < 0.5 {
			status = models.ValveOpen
		}
		b.Valves = append(b.Valves, models.ValveState{ID: id, Status: status, LastUpdated: now})
	}

	var alert *models.AlertEvent
	if s.rnd.Float64() < simAlertChance {
		sev := simSeverity[s.rnd.Intn(len(simSeverity))]
		title := "System Notice"
		if sev == models.SeverityCritical {
			title = "System Alert"
		}
		alert = &models.AlertEvent{
			Severity:  sev,
			Title:     title,
			Message:   "This is a test " + string(sev) + " alert",
			Location:  simLocations[s.rnd.Intn(len(simLocations))],
			CreatedAt: now,
			Status:    models.AlertActive,
		}
	}
	return b, alert
}
