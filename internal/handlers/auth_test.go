package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"
)

func TestAuthHandlers_SignIn(t *testing.T) {
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	auth := &mockAuth{session: models.Session{Token: "tok123", CreatedAt: created, Profile: models.Profile{Username: "jane.doe"}}}
	r := newTestRouter(&service.Service{Authorization: auth})

	w := doRequest(r, http.MethodPost, "/auth/sign-in", `{"username":"jane.doe","password":"secret1","remember":true}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in status=%d, body=%s", w.Code, w.Body.String())
	}
	var sess models.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sess.Token != "tok123" || !sess.CreatedAt.Equal(created) {
		t.Fatalf("unexpected session %+v", sess)
	}
	if auth.lastSignIn != (service.SignInParams{Username: "jane.doe", Password: "secret1", Remember: true}) {
		t.Fatalf("params not forwarded: %+v", auth.lastSignIn)
	}
}

func TestAuthHandlers_SignInErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "missing fields", body: `{"username":"x"}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{`, want: http.StatusBadRequest},
		{name: "too short", body: `{"username":"ab","password":"123"}`, err: fmt.Errorf("%w: username too short", service.ErrInvalidCredentials), want: http.StatusBadRequest},
		{name: "store down", body: `{"username":"abc","password":"123456"}`, err: errors.New("db locked"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: &mockAuth{signInErr: tc.err}})
			w := doRequest(r, http.MethodPost, "/auth/sign-in", tc.body, "")
			if w.Code != tc.want {
				t.Fatalf("status: want %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAuthHandlers_SignOutAndMe(t *testing.T) {
	auth := okAuth()
	auth.status.ExpiringSoon = true
	r := newTestRouter(&service.Service{Authorization: auth})

	w := doRequest(r, http.MethodGet, "/auth/me", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("me status=%d", w.Code)
	}
	var st models.AuthStatus
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Profile.Name != "Jane Doe" || !st.ExpiringSoon {
		t.Fatalf("unexpected status %+v", st)
	}

	w = doRequest(r, http.MethodPost, "/auth/sign-out", "", "tok")
	if w.Code != http.StatusOK || auth.lastSignOut != "tok" {
		t.Fatalf("sign-out status=%d token=%q", w.Code, auth.lastSignOut)
	}

	if w := doRequest(r, http.MethodPost, "/auth/sign-out", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("sign-out without token: want 401, got %d", w.Code)
	}
}
