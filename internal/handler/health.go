package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks []dependency
}

type dependency struct {
	name   string
	pinger Pinger
}

// NewHealthHandler creates a health handler that checks the change feed and the database.
func NewHealthHandler(feed, db Pinger) *HealthHandler {
	return &HealthHandler{checks: []dependency{
		{name: "NATS", pinger: feed},
		{name: "database", pinger: db},
	}}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, dep := range h.checks {
		if dep.pinger == nil || dep.pinger.Ping(ctx) != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": dep.name + " unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
