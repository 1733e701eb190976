package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/cassiomorais/settlement/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// PaymentController handles payment settlement HTTP requests.
type PaymentController struct {
	approveUC   *settlement.ApprovePaymentUseCase
	completeUC  *settlement.CompletePaymentUseCase
	cancelUC    *settlement.CancelPaymentUseCase
	paymentRepo payment.Repository
	metrics     *observability.Metrics
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	approveUC *settlement.ApprovePaymentUseCase,
	completeUC *settlement.CompletePaymentUseCase,
	cancelUC *settlement.CancelPaymentUseCase,
	paymentRepo payment.Repository,
	metrics *observability.Metrics,
) *PaymentController {
	return &PaymentController{
		approveUC:   approveUC,
		completeUC:  completeUC,
		cancelUC:    cancelUC,
		paymentRepo: paymentRepo,
		metrics:     metrics,
	}
}

func (h *PaymentController) observe(operation string, start time.Time, record *payment.Record, err error) {
	if h.metrics == nil {
		return
	}
	status := "error"
	if err == nil && record != nil {
		status = string(record.Status)
	}
	h.metrics.PaymentsTotal.WithLabelValues(operation, status).Inc()
	h.metrics.PaymentDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	if err != nil {
		_, code := classifyError(err)
		h.metrics.PaymentErrors.WithLabelValues(operation, code).Inc()
	}
}

// ApprovePayment handles POST /api/v1/payments/approve
func (h *PaymentController) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	var req ApprovePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	start := time.Now()
	record, err := h.approveUC.Execute(r.Context(), settlement.ApprovePaymentRequest{
		UserID:      userID,
		PaymentID:   req.PaymentID,
		AccessToken: req.AccessToken,
		Amount:      req.Amount,
		Memo:        req.Memo,
		Metadata:    req.Metadata,
	})
	h.observe("approve", start, record, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromRecord(record))
}

// CompletePayment handles POST /api/v1/payments/complete
func (h *PaymentController) CompletePayment(w http.ResponseWriter, r *http.Request) {
	var req CompletePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	record, err := h.completeUC.Execute(r.Context(), req.PaymentID, req.TxID)
	h.observe("complete", start, record, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromRecord(record))
}

// CancelledPayment handles POST /api/v1/payments/cancelled
func (h *PaymentController) CancelledPayment(w http.ResponseWriter, r *http.Request) {
	var req CancelledPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	record, err := h.cancelUC.Execute(r.Context(), req.PaymentID)
	h.observe("cancel", start, record, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromRecord(record))
}

// GetPayment handles GET /api/v1/payments/{paymentId}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	if paymentID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing payment id", Code: "invalid_id"})
		return
	}

	record, err := h.paymentRepo.GetByPaymentID(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromRecord(record))
}

// ListPayments handles GET /api/v1/payments
func (h *PaymentController) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.paymentRepo.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*PaymentResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, FromRecord(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}
