package http

import (
	"net/http"

	"github.com/openvcon/vconstore/internal/api/respond"
	"github.com/openvcon/vconstore/internal/health"
	"github.com/openvcon/vconstore/internal/service"
)

// HealthHandler serves liveness and dependency health.
type HealthHandler struct {
	svc *service.Service
	mon *health.Monitor
}

// NewHealthHandler builds the handler. mon may be nil when no background
// monitor runs; the aggregate endpoint then reports only the store probe.
func NewHealthHandler(svc *service.Service, mon *health.Monitor) *HealthHandler {
	return &HealthHandler{svc: svc, mon: mon}
}

// CheckHealth GET /api/health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if h.mon == nil {
		h.CheckStoreHealth(w, r)
		return
	}
	if !h.mon.IsHealthy() {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":     "unhealthy",
			"components": h.mon.Details(),
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"components": h.mon.Details(),
	})
}

// CheckStoreHealth GET /api/health/db
func (h *HealthHandler) CheckStoreHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.HealthPing(r.Context()); err != nil {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
