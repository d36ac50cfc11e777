package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Driver    string `json:"driver"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// Every storage backend implements this via its Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It reports 503 when the store cannot be reached within three seconds.
func NewHealthHandler(store HealthChecker, driver string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Store:     "connected",
			Driver:    driver,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK
		if err := store.Health(ctx); err != nil {
			slog.Warn("Health check failed", "driver", driver, "error", err)
			response.Status = "unhealthy"
			response.Store = "disconnected"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}
}
