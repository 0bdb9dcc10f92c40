package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func assertSecurityHeaders(t *testing.T, h http.Header) {
	t.Helper()
	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": ContentSecurityPolicy,
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestCompose_RunsHandlerWhenGuardsPass(t *testing.T) {
	t.Parallel()

	var order []string
	guard := func(name string) Guard {
		return func(w http.ResponseWriter, r *http.Request) *Block {
			order = append(order, name)
			w.Header().Set("X-Guard-"+name, "seen")
			return nil
		}
	}
	h := Compose(zap.NewNop(), func(w http.ResponseWriter, r *http.Request) error {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
		return nil
	}, guard("a"), guard("b"))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if strings.Join(order, ",") != "a,b,handler" {
		t.Errorf("order = %v", order)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Guard-a") != "seen" {
		t.Error("headers set by a passing guard were dropped")
	}
	assertSecurityHeaders(t, w.Header())
}

func TestCompose_FirstBlockWins(t *testing.T) {
	t.Parallel()

	secondCalled := false
	handlerCalled := false
	h := Compose(zap.NewNop(),
		func(w http.ResponseWriter, r *http.Request) error {
			handlerCalled = true
			return nil
		},
		func(w http.ResponseWriter, r *http.Request) *Block {
			return &Block{
				Status: http.StatusForbidden,
				Header: http.Header{"X-Blocked-By": {"first"}},
				Body:   map[string]string{"error": "nope"},
			}
		},
		func(w http.ResponseWriter, r *http.Request) *Block {
			secondCalled = true
			return nil
		},
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if secondCalled || handlerCalled {
		t.Error("guards after a block and the handler must not run")
	}
	if w.Header().Get("X-Blocked-By") != "first" {
		t.Error("block header missing")
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["error"] != "nope" {
		t.Errorf("body = %v, err %v", body, err)
	}
	assertSecurityHeaders(t, w.Header())
}

func TestCompose_HandlerFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler HandlerFunc
	}{
		{
			name: "error",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				return errors.New("database password is hunter2")
			},
		},
		{
			name: "panic",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				panic("database password is hunter2")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			w := httptest.NewRecorder()
			Compose(zap.New(core), tt.handler).ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/analyze", nil))

			if w.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", w.Code)
			}
			if strings.Contains(w.Body.String(), "hunter2") {
				t.Error("response leaked internal error details")
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Message != "An unexpected error occurred" {
				t.Errorf("body = %+v", body)
			}
			if logs.FilterMessage("security_event").Len() != 1 {
				t.Error("expected a security_event log entry")
			}
			assertSecurityHeaders(t, w.Header())
		})
	}
}

func TestCompose_ErrorAfterWriteKeepsResponse(t *testing.T) {
	t.Parallel()

	h := Compose(zap.NewNop(), func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		return errors.New("late failure")
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	tests := []struct {
		name     string
		enable   bool
		tls      bool
		wantHSTS bool
	}{
		{name: "disabled", enable: false, tls: true},
		{name: "plain http", enable: true, tls: false},
		{name: "enabled over tls", enable: true, tls: true, wantHSTS: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			url := "http://example.com/"
			if tt.tls {
				url = "https://example.com/"
			}
			w := httptest.NewRecorder()
			SecurityHeaders(tt.enable)(next).ServeHTTP(w, httptest.NewRequest("GET", url, nil))
			assertSecurityHeaders(t, w.Header())
			if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}
