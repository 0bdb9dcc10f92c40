package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/scam-hunter/internal/storage"
	"github.com/gorilla/mux"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	storage *storage.Service
	deps    map[string]Pinger
	version string
}

// NewHealthChecker creates a new health checker. deps are optional named dependencies
// checked in extended mode; nil entries are skipped.
func NewHealthChecker(store *storage.Service, version string, deps map[string]Pinger) *HealthChecker {
	active := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthChecker{storage: store, deps: active, version: version}
}

// RegisterRoutes registers health and version routes
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Storage   *StorageStatus    `json:"storage,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StorageStatus reports which storage provider is serving requests
type StorageStatus struct {
	Provider      string `json:"provider"`
	UsingFallback bool   `json:"usingFallback"`
}

// HealthCheck handles the /healthz endpoint. ?mode=extended adds dependency checks.
// A degraded dependency does not make the service unhealthy because every backend has
// a local fallback.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") == "extended" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := make(map[string]string)
		if h.storage != nil {
			response.Storage = &StorageStatus{
				Provider:      h.storage.ProviderType(),
				UsingFallback: h.storage.UsingFallback(),
			}
			checks["storage"] = checkStatus(h.storage.Ping(ctx))
			if response.Storage.UsingFallback {
				checks["storage"] = "degraded: using in-memory fallback"
			}
		}
		for name, p := range h.deps {
			checks[name] = checkStatus(p.Ping(ctx))
		}
		for _, v := range checks {
			if v != "healthy" {
				response.Status = "degraded"
			}
		}
		response.Checks = checks
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func checkStatus(err error) string {
	if err != nil {
		return "unhealthy: " + sanitizeErrorMessage(err.Error())
	}
	return "healthy"
}

// Version returns the build version
func (h *HealthChecker) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": h.version})
}
