package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/cassiomorais/settlement/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// PayoutController handles disbursement HTTP requests.
type PayoutController struct {
	payoutUC   *settlement.PayoutUseCase
	retryUC    *settlement.RetryPayoutUseCase
	payoutRepo payout.Repository
	metrics    *observability.Metrics
}

// NewPayoutController creates a new PayoutController.
func NewPayoutController(
	payoutUC *settlement.PayoutUseCase,
	retryUC *settlement.RetryPayoutUseCase,
	payoutRepo payout.Repository,
	metrics *observability.Metrics,
) *PayoutController {
	return &PayoutController{
		payoutUC:   payoutUC,
		retryUC:    retryUC,
		payoutRepo: payoutRepo,
		metrics:    metrics,
	}
}

func (h *PayoutController) observe(direction string, amount decimal.Decimal, start time.Time, result *settlement.PayoutResult, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "error"
	switch {
	case err != nil:
	case result.Success:
		outcome = "success"
	case result.WillRetry:
		outcome = "retry_scheduled"
	default:
		outcome = "failed"
	}
	h.metrics.PayoutsTotal.WithLabelValues(direction, outcome).Inc()
	h.metrics.PayoutDuration.WithLabelValues(direction, outcome).Observe(time.Since(start).Seconds())
	if err == nil && result.Success {
		f, _ := amount.Float64()
		h.metrics.PayoutAmount.WithLabelValues(direction).Observe(f)
	}
}

// CreatePayout handles POST /api/v1/payouts
func (h *PayoutController) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req PayoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	result, err := h.payoutUC.Execute(r.Context(), settlement.PayoutRequest{
		RecipientID: req.RecipientID,
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Direction:   payout.Direction(req.Direction),
		Memo:        req.Memo,
	})
	h.observe(req.Direction, req.Amount, start, result, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayoutResult(result))
}

// RetryPayout handles POST /api/v1/payouts/retry
func (h *PayoutController) RetryPayout(w http.ResponseWriter, r *http.Request) {
	var req RetryPayoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	requesterID, _ := middleware.GetUserID(r.Context())

	start := time.Now()
	result, err := h.retryUC.Execute(r.Context(), settlement.RetryPayoutRequest{
		RequesterID: requesterID,
		StoreID:     req.StoreID,
		OrderID:     req.OrderID,
		Amount:      req.Amount,
	})
	h.observe(string(payout.ToStore), req.Amount, start, result, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayoutResult(result))
}

// GetPayoutsByOrder handles GET /api/v1/payouts/order/{orderId}
func (h *PayoutController) GetPayoutsByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing order id", Code: "invalid_id"})
		return
	}

	records, err := h.payoutRepo.GetByOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*PayoutRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, FromPayoutRecord(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}
