package handler

import (
	"net/http"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/api/response"
	"github.com/tabletimer/tabletimer/internal/registry"
)

// TimersHandler serves the dashboard view of known devices.
type TimersHandler struct {
	svc *registry.Service
}

// NewTimersHandler creates a new TimersHandler.
func NewTimersHandler(svc *registry.Service) *TimersHandler {
	return &TimersHandler{svc: svc}
}

// List handles GET /api/timers - all known devices keyed by device id,
// with online and floorman status computed as of now.
func (h *TimersHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.svc.ListDevices(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list devices")
		return
	}
	response.JSON(w, r, http.StatusOK, devices)
}

// Clear handles DELETE /api/timers - drops every device record.
func (h *TimersHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.svc.ClearDevices(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to clear devices")
		return
	}
	response.JSON(w, r, http.StatusOK, models.ClearResult{Status: "ok", Cleared: cleared})
}
