package api

import (
	"context"
	"net/http"

	"github.com/cardforge/cardforge/internal/log"
)

// Pinger checks reachability of the chain dependency.
type Pinger interface {
	ChainIdentifier(ctx context.Context) (string, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pinger Pinger
	logger log.Logger
}

// NewHealthHandler creates a health handler. pinger may be nil when
// the server runs without chain access.
func NewHealthHandler(pinger Pinger, logger log.Logger) *HealthHandler {
	return &HealthHandler{pinger: pinger, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 as long as the process is serving.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness checks the fullnode when one is configured.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if _, err := h.pinger.ChainIdentifier(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "error", err)
			http.Error(w, "fullnode not reachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
