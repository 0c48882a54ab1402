package handler

import (
	"net/http"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status      string `json:"status"`
	Marketplace string `json:"marketplace"`
	Sessions    int    `json:"sessions"`
}

// HealthHandler reports liveness plus the state of the marketplace breaker.
// The process stays healthy while the breaker is open; it only reports the
// upstream as degraded.
type HealthHandler struct {
	breakerState func() string
	sessions     func() int
}

// NewHealthHandler creates a health handler. Either func may be nil.
func NewHealthHandler(breakerState func() string, sessions func() int) *HealthHandler {
	return &HealthHandler{breakerState: breakerState, sessions: sessions}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ok", Marketplace: "unknown"}
	if h.breakerState != nil {
		status.Marketplace = h.breakerState()
		if status.Marketplace == "open" {
			status.Status = "degraded"
		}
	}
	if h.sessions != nil {
		status.Sessions = h.sessions()
	}
	writeJSON(w, http.StatusOK, status)
}
