package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/api/response"
	"github.com/tabletimer/tabletimer/internal/bar"
	"github.com/tabletimer/tabletimer/internal/registry"
)

// BarHandler handles bar service requests.
type BarHandler struct {
	svc   *registry.Service
	store *bar.Store
}

// NewBarHandler creates a new BarHandler.
func NewBarHandler(svc *registry.Service, store *bar.Store) *BarHandler {
	return &BarHandler{svc: svc, store: store}
}

// Request handles POST /api/bar_service_request - opens a bar service call
// for a table and stamps the table's device record.
func (h *BarHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req models.TableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid bar request payload: "+err.Error(), nil)
		return
	}
	table := int(req.TableNumber)
	if table <= 0 {
		response.BadRequest(w, r, "table_number is required", []models.FieldError{
			{Field: "table_number", Message: "must be a positive integer", Code: "OUT_OF_RANGE"},
		})
		return
	}

	if _, err := h.svc.MarkBarRequested(r.Context(), table); err != nil {
		notFoundFor(w, r, err, fmt.Sprintf("no device registered for table %d", table))
		return
	}
	request := h.store.Add(r.Context(), table)

	response.JSON(w, r, http.StatusOK, toAPIBarRequest(request))
}

// List handles GET /api/bar_requests - all outstanding bar calls, oldest
// first. Calls older than the service window are dropped.
func (h *BarHandler) List(w http.ResponseWriter, r *http.Request) {
	requests := h.store.List(r.Context())
	out := make([]models.BarRequest, 0, len(requests))
	for _, req := range requests {
		out = append(out, toAPIBarRequest(req))
	}
	response.JSON(w, r, http.StatusOK, out)
}

// Complete handles POST /api/bar_requests/{id}/complete.
func (h *BarHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Complete(r.Context(), id); err != nil {
		if errors.Is(err, bar.ErrRequestNotFound) {
			response.NotFound(w, r, "bar request not found: "+id)
			return
		}
		response.InternalError(w, r, "failed to complete bar request")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Ack{Status: "ok", Message: "bar request completed"})
}

func toAPIBarRequest(req *bar.Request) models.BarRequest {
	return models.BarRequest{
		ID:          req.ID,
		TableNumber: req.TableNumber,
		Timestamp:   models.Millis(req.RequestedAt),
	}
}
