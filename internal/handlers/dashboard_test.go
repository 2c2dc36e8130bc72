package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"
	"github.com/mahdirajaee/iot-ongoingv1/internal/telemetry"
)

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{Monitoring: &mockMonitoring{status: models.StatusConnecting}})
	w := doRequest(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["status"] != statusOK || out["connection"] != string(models.StatusConnecting) {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestDashboard_RequiresAuthAndReturnsSnapshot(t *testing.T) {
	mon := &mockMonitoring{snap: models.Snapshot{
		Connection: models.StatusConnected,
		Pressure:   &models.Reading{Metric: models.MetricPressure, Value: 1250},
		Alerts:     models.AlertCounts{Critical: 1, Total: 1},
	}}
	r := newTestRouter(&service.Service{Authorization: okAuth(), Monitoring: mon})

	if w := doRequest(r, http.MethodGet, "/api/v1/dashboard", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/dashboard", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var snap models.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Pressure == nil || snap.Pressure.Value != 1250 || snap.Alerts.Critical != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestValves_List(t *testing.T) {
	valves := &mockValves{valves: []models.ValveState{{ID: "VA1", Status: models.ValveOpen}, {ID: "VB1", Status: models.ValveClosed}}}
	r := newTestRouter(&service.Service{Authorization: okAuth(), Valves: valves})

	w := doRequest(r, http.MethodGet, "/api/v1/valves", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out struct {
		Count  int                 `json:"count"`
		Valves []models.ValveState `json:"valves"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Valves[0].ID != "VA1" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestValves_Set(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		toggleErr error
		want      int
		wantCalls int
	}{
		{name: "open", body: `{"status":"open"}`, want: http.StatusOK, wantCalls: 1},
		{name: "case insensitive", body: `{"status":" Closed "}`, want: http.StatusOK, wantCalls: 1},
		{name: "unknown status", body: `{"status":"ajar"}`, want: http.StatusBadRequest},
		{name: "missing body", body: `{}`, want: http.StatusBadRequest},
		{name: "rejected change", body: `{"status":"open"}`, toggleErr: fmt.Errorf("%w: id", telemetry.ErrInvalidValveChange), want: http.StatusBadRequest, wantCalls: 1},
		{name: "api-server failure", body: `{"status":"open"}`, toggleErr: fmt.Errorf("%w: %w", service.ErrValveControl, errors.New("502")), want: http.StatusBadGateway, wantCalls: 1},
		{name: "unexpected", body: `{"status":"open"}`, toggleErr: errors.New("boom"), want: http.StatusInternalServerError, wantCalls: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			valves := &mockValves{toggleErr: tc.toggleErr}
			r := newTestRouter(&service.Service{Authorization: okAuth(), Valves: valves})

			w := doRequest(r, http.MethodPost, "/api/v1/valves/VA1", tc.body, "tok")
			if w.Code != tc.want {
				t.Fatalf("status: want %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
			if valves.calls != tc.wantCalls {
				t.Fatalf("ToggleValve calls: want %d, got %d", tc.wantCalls, valves.calls)
			}
			if tc.want == http.StatusOK {
				if valves.lastID != "VA1" || !valves.lastStatus.Valid() {
					t.Fatalf("unexpected command %s/%s", valves.lastID, valves.lastStatus)
				}
			}
		})
	}
}
