// Package handler provides HTTP handlers for the table timer API.
package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/api/response"
	"github.com/tabletimer/tabletimer/internal/registry"
)

// StatusHandler handles the device status push endpoint.
type StatusHandler struct {
	svc *registry.Service
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(svc *registry.Service) *StatusHandler {
	return &StatusHandler{svc: svc}
}

// Push handles POST /api/status - a device reports its state and collects
// its pending command.
func (h *StatusHandler) Push(w http.ResponseWriter, r *http.Request) {
	var push models.StatusPush
	if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
		response.BadRequest(w, r, "invalid status payload: "+err.Error(), nil)
		return
	}
	if push.DeviceID == "" {
		response.BadRequest(w, r, "device_id is required", []models.FieldError{
			{Field: "device_id", Message: "required", Code: "REQUIRED"},
		})
		return
	}

	resp, err := h.svc.Push(r.Context(), &push, clientIP(r))
	if err != nil {
		response.InternalError(w, r, "failed to record status")
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// clientIP strips the port from the peer address. Behind a proxy chi's
// RealIP middleware has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// notFoundFor maps domain lookup failures onto 404 problems, everything
// else onto 500.
func notFoundFor(w http.ResponseWriter, r *http.Request, err error, detail string) {
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound),
		errors.Is(err, registry.ErrTableNotFound),
		errors.Is(err, registry.ErrNoActiveCall):
		response.NotFound(w, r, detail)
	default:
		response.InternalError(w, r, detail)
	}
}
