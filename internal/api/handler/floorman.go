package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/api/response"
	"github.com/tabletimer/tabletimer/internal/registry"
)

// FloormanHandler handles floorman call requests and completions.
type FloormanHandler struct {
	svc *registry.Service
}

// NewFloormanHandler creates a new FloormanHandler.
func NewFloormanHandler(svc *registry.Service) *FloormanHandler {
	return &FloormanHandler{svc: svc}
}

// Request handles POST /api/floorman_request - opens (or refreshes) the
// floorman call for a table.
func (h *FloormanHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req models.TableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid floorman request payload: "+err.Error(), nil)
		return
	}
	table := int(req.TableNumber)
	if table <= 0 {
		response.BadRequest(w, r, "table_number is required", []models.FieldError{
			{Field: "table_number", Message: "must be a positive integer", Code: "OUT_OF_RANGE"},
		})
		return
	}

	if err := h.svc.RequestFloorman(r.Context(), table); err != nil {
		notFoundFor(w, r, err, fmt.Sprintf("no device registered for table %d", table))
		return
	}

	response.JSON(w, r, http.StatusOK, models.Ack{Status: "ok", Message: "floorman requested"})
}

// Clear handles DELETE /api/floorman_request/{tableNumber} - completes the
// call. 404 when the table has no active call.
func (h *FloormanHandler) Clear(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(chi.URLParam(r, "tableNumber"))
	if err != nil || table <= 0 {
		response.BadRequest(w, r, "tableNumber must be a positive integer", nil)
		return
	}

	if err := h.svc.ClearFloorman(r.Context(), table); err != nil {
		notFoundFor(w, r, err, fmt.Sprintf("no active floorman call for table %d", table))
		return
	}

	response.JSON(w, r, http.StatusOK, models.Ack{Status: "ok", Message: "floorman call completed"})
}
