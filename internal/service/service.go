package service

import (
	"context"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/alerting"
	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/notify"
	"github.com/mahdirajaee/iot-ongoingv1/internal/repository"
)

// Authorization is the mock login: any well-formed credentials get a token
// that stays valid for 24 hours.
type Authorization interface {
	SignIn(ctx context.Context, p SignInParams) (models.Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (models.AuthStatus, error)
}

// Monitoring exposes read-only dashboard state.
type Monitoring interface {
	Snapshot(ctx context.Context) models.Snapshot
	Status() models.ConnectionStatus
}

// Valves lists and toggles valves through the api-server.
type Valves interface {
	Valves() []models.ValveState
	ToggleValve(ctx context.Context, id string, status models.ValveStatus) (models.ValveState, error)
}

// Alerts is the user-facing side of the alert register.
type Alerts interface {
	Recent(limit int) []models.AlertEvent
	All() []models.AlertEvent
	Get(id string) (models.AlertEvent, error)
	Counts() models.AlertCounts
	Resolve(ctx context.Context, id string) (models.AlertEvent, error)
}

// Rules stores automation rules for display. They are never evaluated.
type Rules interface {
	Create(ctx context.Context, p RuleParams) (models.AutomationRule, error)
	List() []models.AutomationRule
	Toggle(ctx context.Context, id string) (models.AutomationRule, error)
	Delete(ctx context.Context, id string) error
}

// EventLog exposes the activity journal with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Poller drives the polling lifecycle until ctx is canceled.
type Poller interface {
	Run(ctx context.Context) error
}

// Simulator feeds synthetic telemetry while the upstream is unreachable.
// Stop via context cancellation.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

type Service struct {
	Authorization
	Monitoring
	Valves
	Alerts
	Rules
	EventLog
	Poller
	Simulator
}

// Deps carries everything NewService wires together.
type Deps struct {
	Repos      *repository.Repository
	Telemetry  Telemetry
	Thresholds alerting.Thresholds
	Notifier   notify.Notifier // optional
	Log        *logger.Logger
	Controller ControllerConfig
	Auth       AuthConfig
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	register := alerting.NewRegister()
	j := newJournal(d.Repos.EventRepo, log)

	ctrl := NewController(d.Telemetry, alerting.NewEvaluator(d.Thresholds), register, j, d.Notifier, log.Named("controller"), d.Controller)

	return &Service{
		Authorization: NewAuthService(d.Repos.SessionRepo, j, d.Auth),
		Monitoring:    ctrl,
		Valves:        ctrl,
		Alerts:        NewAlertService(register, j),
		Rules:         NewRuleService(j),
		EventLog:      NewEventLogService(d.Repos.EventRepo),
		Poller:        ctrl,
		Simulator:     NewSimulatorService(ctrl, nil, log.Named("simulator")),
	}
}
