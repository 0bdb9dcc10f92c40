package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		method          string
		path            string
		handlerStatus   int
		storageFallback bool
	}{
		{name: "GET request", method: "GET", path: "/api/v1/history", handlerStatus: http.StatusOK},
		{name: "POST request", method: "POST", path: "/api/v1/analyze", handlerStatus: http.StatusCreated, storageFallback: true},
		{name: "404 request", method: "GET", path: "/notfound", handlerStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.storageFallback {
					w.Header().Set("X-Storage-Fallback", "true")
				}
				w.WriteHeader(tt.handlerStatus)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			if w.Code != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, w.Code)
			}

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("status_code = %v, want %d", fields["status_code"], tt.handlerStatus)
			}
			if fields["path"] != tt.path {
				t.Errorf("path = %v, want %s", fields["path"], tt.path)
			}
			if _, ok := fields["storage_fallback"]; ok != tt.storageFallback {
				t.Errorf("storage_fallback present = %v, want %v", ok, tt.storageFallback)
			}
		})
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantMsg string
	}{
		{name: "ok is not logged", status: http.StatusOK},
		{name: "forbidden", status: http.StatusForbidden, wantMsg: "security_event"},
		{name: "unsupported media type", status: http.StatusUnsupportedMediaType, wantMsg: "security_event"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantMsg: "rate_limit_violation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			req := httptest.NewRequest("POST", "/api/v1/analyze", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			Audit(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantMsg == "" {
				if logs.Len() != 0 {
					t.Errorf("Expected no audit entries, got %d", logs.Len())
				}
				return
			}
			entries := logs.FilterMessage(tt.wantMsg).All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 %s entry, got %d", tt.wantMsg, len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["ip_hash"] == "203.0.113.9" || fields["ip_hash"] == "" {
				t.Errorf("ip_hash = %v, want hashed IP", fields["ip_hash"])
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze", nil)
	req.ContentLength = 2048
	w := httptest.NewRecorder()
	MaxRequestSize(1024)(handler).ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
	if called {
		t.Error("handler should not run for oversized requests")
	}
}
