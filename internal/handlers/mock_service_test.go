package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/alerting"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	session    models.Session
	signInErr  error
	status     models.AuthStatus
	authErr    error
	signOutErr error

	lastSignIn    service.SignInParams
	lastAuthToken string
	lastSignOut   string
}

func (m *mockAuth) SignIn(ctx context.Context, p service.SignInParams) (models.Session, error) {
	m.lastSignIn = p
	return m.session, m.signInErr
}
func (m *mockAuth) SignOut(ctx context.Context, token string) error {
	m.lastSignOut = token
	return m.signOutErr
}
func (m *mockAuth) Authenticate(ctx context.Context, token string) (models.AuthStatus, error) {
	m.lastAuthToken = token
	return m.status, m.authErr
}

type mockMonitoring struct {
	snap   models.Snapshot
	status models.ConnectionStatus
}

func (m *mockMonitoring) Snapshot(ctx context.Context) models.Snapshot { return m.snap }
func (m *mockMonitoring) Status() models.ConnectionStatus { return m.status }

type mockValves struct {
	valves    []models.ValveState
	toggleErr error

	lastID     string
	lastStatus models.ValveStatus
	calls      int
}

func (m *mockValves) Valves() []models.ValveState { return m.valves }
func (m *mockValves) ToggleValve(ctx context.Context, id string, status models.ValveStatus) (models.ValveState, error) {
	m.calls++
	m.lastID = id
	m.lastStatus = status
	if m.toggleErr != nil {
		return models.ValveState{}, m.toggleErr
	}
	return models.ValveState{ID: id, Status: status, LastUpdated: time.Now().UTC()}, nil
}

type mockAlerts struct {
	alerts []models.AlertEvent
	counts models.AlertCounts

	lastLimit int
	resolved  []string
}

func (m *mockAlerts) Recent(limit int) []models.AlertEvent {
	m.lastLimit = limit
	if limit < len(m.alerts) {
		return m.alerts[:limit]
	}
	return m.alerts
}
func (m *mockAlerts) All() []models.AlertEvent { return m.alerts }
func (m *mockAlerts) Counts() models.AlertCounts { return m.counts }
func (m *mockAlerts) Get(id string) (models.AlertEvent, error) {
	for _, a := range m.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return models.AlertEvent{}, alerting.ErrNotFound
}
func (m *mockAlerts) Resolve(ctx context.Context, id string) (models.AlertEvent, error) {
	a, err := m.Get(id)
	if err != nil {
		return a, err
	}
	m.resolved = append(m.resolved, id)
	a.Status = models.AlertResolved
	return a, nil
}

type mockRules struct {
	rules     []models.AutomationRule
	createErr error
	toggleErr error
	deleteErr error

	lastCreate service.RuleParams
	lastID     string
}

func (m *mockRules) Create(ctx context.Context, p service.RuleParams) (models.AutomationRule, error) {
	m.lastCreate = p
	if m.createErr != nil {
		return models.AutomationRule{}, m.createErr
	}
	return models.AutomationRule{ID: "RULE-1", Metric: models.Metric(p.Metric), Operator: p.Operator, Threshold: p.Threshold, Action: p.Action, Target: p.Target, Enabled: true}, nil
}
func (m *mockRules) List() []models.AutomationRule { return m.rules }
func (m *mockRules) Toggle(ctx context.Context, id string) (models.AutomationRule, error) {
	m.lastID = id
	return models.AutomationRule{ID: id}, m.toggleErr
}
func (m *mockRules) Delete(ctx context.Context, id string) error {
	m.lastID = id
	return m.deleteErr
}

type mockEventLog struct {
	resp   []models.Event
	err    error
	filter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.filter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// okAuth accepts every bearer token.
func okAuth() *mockAuth {
	return &mockAuth{status: models.AuthStatus{Profile: models.Profile{Name: "Jane Doe", Username: "jane.doe", Avatar: "JD", Role: "User"}}}
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// doRequest serves one request; body may be empty and token may be "".
func doRequest(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader(token) {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
