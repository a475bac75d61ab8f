package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/api/response"
	"github.com/tabletimer/tabletimer/internal/registry"
)

// SeatHandler handles open-seat announcements from the floor.
type SeatHandler struct {
	svc *registry.Service
}

// NewSeatHandler creates a new SeatHandler.
func NewSeatHandler(svc *registry.Service) *SeatHandler {
	return &SeatHandler{svc: svc}
}

// Request handles POST /api/seat_request - announces open seats for a
// table. 404 when no device currently claims the table.
func (h *SeatHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req models.SeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid seat request payload: "+err.Error(), nil)
		return
	}
	table := int(req.TableNumber)
	if table <= 0 {
		response.BadRequest(w, r, "table_number is required", []models.FieldError{
			{Field: "table_number", Message: "must be a positive integer", Code: "OUT_OF_RANGE"},
		})
		return
	}
	if len(req.Seats) == 0 {
		response.BadRequest(w, r, "seats must not be empty", []models.FieldError{
			{Field: "seats", Message: "must not be empty", Code: "REQUIRED"},
		})
		return
	}

	info, err := h.svc.RequestSeats(r.Context(), table, req.Seats, req.Action)
	if err != nil {
		notFoundFor(w, r, err, fmt.Sprintf("no device registered for table %d", table))
		return
	}

	response.JSON(w, r, http.StatusOK, struct {
		Status   string          `json:"status"`
		SeatInfo models.SeatInfo `json:"seat_info"`
	}{Status: "ok", SeatInfo: *info})
}
