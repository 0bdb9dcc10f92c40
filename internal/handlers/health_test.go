package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/scam-hunter/internal/storage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy(context.Context) error { return nil }

func serveHealth(t *testing.T, h *HealthChecker, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w, resp
}

func TestHealthCheck_Basic(t *testing.T) {
	t.Parallel()
	store := storage.NewService(context.Background(), storage.Config{}, zap.NewNop())
	h := NewHealthChecker(store, "1.2.3", map[string]Pinger{"redis": pingerFunc(func(context.Context) error {
		t.Error("basic mode should not ping dependencies")
		return nil
	})})

	for _, path := range []string{"/healthz", "/health"} {
		w, resp := serveHealth(t, h, path)
		if w.Code != http.StatusOK || resp.Status != "healthy" {
			t.Errorf("%s: status %d / %q", path, w.Code, resp.Status)
		}
		if resp.Checks != nil || resp.Storage != nil {
			t.Errorf("%s: basic mode should not include checks", path)
		}
	}
}

func TestHealthCheck_Extended(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []storage.Option
		deps       map[string]Pinger
		wantStatus string
		wantChecks map[string]string
		wantStore  StorageStatus
	}{
		{
			name:       "all healthy",
			deps:       map[string]Pinger{"redis": pingerFunc(healthy), "blob": nil},
			wantStatus: "healthy",
			wantChecks: map[string]string{"storage": "healthy", "redis": "healthy"},
			wantStore:  StorageStatus{Provider: storage.ProviderMemory},
		},
		{
			name:       "dependency down",
			deps:       map[string]Pinger{"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") })},
			wantStatus: "degraded",
			wantChecks: map[string]string{"storage": "healthy", "redis": "unhealthy: connection refused"},
			wantStore:  StorageStatus{Provider: storage.ProviderMemory},
		},
		{
			name: "durable storage unavailable",
			opts: []storage.Option{storage.WithProviderFactory(func(context.Context, string) (storage.Provider, error) {
				return nil, errors.New("no route to host")
			})},
			wantStatus: "degraded",
			wantChecks: map[string]string{"storage": "degraded: using in-memory fallback"},
			wantStore:  StorageStatus{Provider: storage.ProviderMemory, UsingFallback: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := storage.Config{}
			if len(tt.opts) > 0 {
				cfg.DatabaseURL = "postgres://unreachable/db"
			}
			store := storage.NewService(context.Background(), cfg, zap.NewNop(), tt.opts...)
			w, resp := serveHealth(t, NewHealthChecker(store, "dev", tt.deps), "/healthz?mode=extended")

			if w.Code != http.StatusOK {
				t.Errorf("code = %d, want 200", w.Code)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Storage == nil || *resp.Storage != tt.wantStore {
				t.Errorf("storage = %+v, want %+v", resp.Storage, tt.wantStore)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", resp.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, resp.Checks[k], v)
				}
			}
		})
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	NewHealthChecker(nil, "1.2.3", nil).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if data := string(decodeEnvelope(t, w).Data); !strings.Contains(data, `"version":"1.2.3"`) {
		t.Errorf("data = %s", data)
	}
}
