package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frahmantamala/account-registry/internal/account"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// HealthHandler reports the registry and, when persistence is configured, the database.
type HealthHandler struct {
	registry *account.Registry
	db       *sql.DB
}

// NewHealthHandler accepts a nil db for in-memory deployments.
func NewHealthHandler(registry *account.Registry, db *sql.DB) *HealthHandler {
	return &HealthHandler{registry: registry, db: db}
}

// pingHandler → just says service is up
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// healthCheckHandler → checks every component
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]CheckEntry{
		"registry": h.checkRegistry(),
	}
	if h.db != nil {
		components["postgres"] = h.checkDB(r.Context())
	}

	status := HealthHealthy
	for _, c := range components {
		if c.Status == HealthUnhealthy {
			status = HealthUnhealthy
		}
	}

	statusCode := http.StatusOK
	if status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeHealthJSON(w, statusCode, HealthResponse{
		Status:     status,
		CheckedAt:  time.Now(),
		Components: components,
	})
}

func (h *HealthHandler) checkRegistry() CheckEntry {
	start := time.Now()
	entry := CheckEntry{Status: HealthHealthy}
	if h.registry == nil {
		entry.Status = HealthUnhealthy
		entry.Message = "registry not initialised"
	} else {
		entry.Details = map[string]any{"accounts": h.registry.Len()}
	}
	entry.CheckedAt = time.Now()
	entry.DurationMs = time.Since(start).Milliseconds()
	return entry
}

func (h *HealthHandler) checkDB(ctx context.Context) CheckEntry {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}

func writeHealthJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
