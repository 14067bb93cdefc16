package handlers

import (
	"context"
	"net/http"
	"time"
)

// Checker reports whether the loader can serve requests.
type Checker interface {
	Healthcheck(ctx context.Context) error
}

// HealthHandler handles the health endpoints.
//
//   - Liveness: is the process serving HTTP?
//   - Readiness: is the loader open and its durable tier reachable?
type HealthHandler struct {
	checker   Checker
	storeType string
	startedAt time.Time
}

// NewHealthHandler creates a health handler. A nil checker makes readiness
// fail.
func NewHealthHandler(checker Checker, storeType string) *HealthHandler {
	return &HealthHandler{checker: checker, storeType: storeType, startedAt: time.Now()}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt).Truncate(time.Second)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "imgloader",
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"uptime":     uptime.String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 when the loader is closed or the durable store fails its
// healthcheck within 5 seconds.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("loader not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.checker.Healthcheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"store_type": h.storeType,
		"latency":    time.Since(start).String(),
	}))
}
