package handlers

import (
	"context"
	"net/http"

	"github.com/roastline/api/internal/platform/httpx"
)

// ReadinessChecker reports whether downstream dependencies are reachable.
type ReadinessChecker func(ctx context.Context) error

// HealthHandlers exposes liveness and readiness probes.
type HealthHandlers struct {
	ready ReadinessChecker
}

// NewHealthHandlers constructs health handlers. A nil checker makes readiness
// unconditionally succeed.
func NewHealthHandlers(ready ReadinessChecker) *HealthHandlers {
	return &HealthHandlers{ready: ready}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports dependency readiness.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", "dependencies unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
