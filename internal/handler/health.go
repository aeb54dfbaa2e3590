package handler

import (
	"net/http"
)

// ConnectionChecker reports whether a backing connection is usable.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient ConnectionChecker
}

// NewHealthHandler creates a new health handler. A nil client means NATS is
// disabled and readiness does not depend on it.
func NewHealthHandler(natsClient ConnectionChecker) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	// Check NATS connection
	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
