package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/api/response"
	"github.com/tabletimer/tabletimer/internal/registry"
)

// ControlHandler handles per-device operator actions: settings pushes,
// remote commands and seat notification acknowledgements.
type ControlHandler struct {
	svc *registry.Service
}

// NewControlHandler creates a new ControlHandler.
func NewControlHandler(svc *registry.Service) *ControlHandler {
	return &ControlHandler{svc: svc}
}

// Settings handles POST /api/settings/{deviceId} - queues a settings
// payload for the device's next poll.
func (h *ControlHandler) Settings(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req models.SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid settings payload: "+err.Error(), nil)
		return
	}
	if !validMode(int(req.Mode)) {
		response.BadRequest(w, r, "mode must be between 1 and 4", []models.FieldError{
			{Field: "mode", Message: "must be between 1 and 4", Code: "OUT_OF_RANGE"},
		})
		return
	}

	if err := h.svc.QueueSettings(r.Context(), deviceID, &req); err != nil {
		notFoundFor(w, r, err, "device not found: "+deviceID)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Ack{Status: "ok", Message: "settings queued"})
}

// Command handles POST /api/command/{deviceId} - queues or, for the
// clearing commands, immediately applies a command.
func (h *ControlHandler) Command(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req models.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid command payload: "+err.Error(), nil)
		return
	}
	command := strings.TrimSpace(req.Command)
	if !validCommand(command) {
		response.BadRequest(w, r, "unknown command: "+command, []models.FieldError{
			{Field: "command", Message: "unknown command", Code: "INVALID"},
		})
		return
	}

	queued, err := h.svc.IssueCommand(r.Context(), deviceID, command)
	if err != nil {
		notFoundFor(w, r, err, "device not found: "+deviceID)
		return
	}

	msg := "command applied"
	if queued {
		msg = "command queued"
	}
	response.JSON(w, r, http.StatusOK, models.Ack{Status: "ok", Message: msg})
}

// AcknowledgeSeat handles POST /api/acknowledge_seat_notification/{deviceId}.
// Acknowledging an unknown device or an already-lowered flag still succeeds.
func (h *ControlHandler) AcknowledgeSeat(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	if err := h.svc.AcknowledgeSeat(r.Context(), deviceID); err != nil {
		response.InternalError(w, r, "failed to acknowledge notification")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Ack{Status: "ok", Message: "notification acknowledged"})
}

func validMode(mode int) bool {
	return mode >= 1 && mode <= 4
}

// validCommand accepts the fixed command names plus the legacy
// "seat_open:<csv>" form carried over from older firmware.
func validCommand(command string) bool {
	switch command {
	case registry.CommandStart,
		registry.CommandPause,
		registry.CommandReset,
		registry.CommandStop,
		registry.CommandSwitch,
		registry.CommandResetSeatInfo,
		registry.CommandClearFloorman:
		return true
	}
	name, payload, ok := strings.Cut(command, ":")
	if !ok || name != registry.CommandSeatOpen {
		return false
	}
	for _, part := range strings.Split(payload, ",") {
		if _, err := strconv.Atoi(strings.TrimSpace(part)); err != nil {
			return false
		}
	}
	return payload != ""
}
