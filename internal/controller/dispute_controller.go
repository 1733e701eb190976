package controller

import (
	"net/http"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/dispute"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DisputeController handles dispute resolution HTTP requests.
type DisputeController struct {
	resolveUC *settlement.ResolveDisputeUseCase
	metrics   *observability.Metrics
}

// NewDisputeController creates a new DisputeController.
func NewDisputeController(resolveUC *settlement.ResolveDisputeUseCase, metrics *observability.Metrics) *DisputeController {
	return &DisputeController{resolveUC: resolveUC, metrics: metrics}
}

func (h *DisputeController) observeClosed(d *dispute.Dispute) {
	if h.metrics == nil || d == nil {
		return
	}
	h.metrics.DisputesClosed.WithLabelValues(string(d.Status)).Inc()
}

// ResolveDispute handles POST /api/v1/disputes/{id}/resolve
func (h *DisputeController) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid dispute id", Code: "invalid_id"})
		return
	}

	var req CloseDisputeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d, result, err := h.resolveUC.Resolve(r.Context(), id, req.Resolution)
	if err != nil {
		writeError(w, err)
		return
	}

	h.observeClosed(d)
	writeJSON(w, http.StatusOK, FromDispute(d, result))
}

// RejectDispute handles POST /api/v1/disputes/{id}/reject
func (h *DisputeController) RejectDispute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid dispute id", Code: "invalid_id"})
		return
	}

	var req CloseDisputeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d, result, err := h.resolveUC.Reject(r.Context(), id, req.Resolution)
	if err != nil {
		writeError(w, err)
		return
	}

	h.observeClosed(d)
	writeJSON(w, http.StatusOK, FromDispute(d, result))
}
