package controller

import (
	"time"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/dispute"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string IDs, validation tags).
// Controllers convert these to application layer requests before calling
// business logic. Amounts decode through decimal to avoid float drift.

// ApprovePaymentRequest holds the input for approving a claimed payment.
type ApprovePaymentRequest struct {
	PaymentID   string          `json:"payment_id" validate:"required"`
	AccessToken string          `json:"access_token" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Memo        string          `json:"memo"`
	Metadata    map[string]any  `json:"metadata"`
}

// CompletePaymentRequest holds the input for completing an approved payment.
type CompletePaymentRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	TxID      string `json:"txid" validate:"required"`
}

// CancelledPaymentRequest reports a provider-side cancellation.
type CancelledPaymentRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

// PayoutRequest holds the input for a direct disbursement.
type PayoutRequest struct {
	RecipientID string          `json:"recipient_id" validate:"required"`
	OrderID     string          `json:"order_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Direction   string          `json:"direction" validate:"required,oneof=to_store to_customer"`
	Memo        string          `json:"memo"`
}

// RetryPayoutRequest holds the input for a store-owner payout retry.
type RetryPayoutRequest struct {
	StoreID string          `json:"store_id" validate:"required"`
	OrderID string          `json:"order_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
}

// CloseDisputeRequest holds the resolution note for closing a dispute.
type CloseDisputeRequest struct {
	Resolution string `json:"resolution"`
}

// --- Response DTOs ---

// PaymentResponse represents a payment ledger record in API responses.
type PaymentResponse struct {
	PaymentID     string         `json:"payment_id"`
	UserID        string         `json:"user_id"`
	Amount        string         `json:"amount"`
	Memo          string         `json:"memo,omitempty"`
	Status        string         `json:"status"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// PayoutResultResponse represents the outcome of a disbursement attempt.
type PayoutResultResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	WillRetry     bool   `json:"will_retry,omitempty"`
}

// PayoutRecordResponse represents one payout ledger row.
type PayoutRecordResponse struct {
	ID            string    `json:"id"`
	RecipientID   string    `json:"recipient_id"`
	OrderID       string    `json:"order_id"`
	Direction     string    `json:"direction"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	TransactionID *string   `json:"transaction_id,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisputeResponse represents a dispute in API responses.
type DisputeResponse struct {
	ID         string                `json:"id"`
	OrderID    string                `json:"order_id"`
	StoreID    string                `json:"store_id,omitempty"`
	CustomerID string                `json:"customer_id"`
	Reason     string                `json:"reason,omitempty"`
	Status     string                `json:"status"`
	Resolution *string               `json:"resolution,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	ResolvedAt *time.Time            `json:"resolved_at,omitempty"`
	Payout     *PayoutResultResponse `json:"payout,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromRecord converts a payment ledger record to an API response.
func FromRecord(p *payment.Record) *PaymentResponse {
	return &PaymentResponse{
		PaymentID:     p.PaymentID,
		UserID:        p.UserID,
		Amount:        p.Amount.String(),
		Memo:          p.Memo,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		Metadata:      p.Metadata,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

// FromPayoutResult converts a payout outcome to an API response.
func FromPayoutResult(r *settlement.PayoutResult) *PayoutResultResponse {
	return &PayoutResultResponse{
		Success:       r.Success,
		TransactionID: r.TransactionID,
		Reason:        r.Reason,
		WillRetry:     r.WillRetry,
	}
}

// FromPayoutRecord converts a payout ledger row to an API response.
func FromPayoutRecord(rec *payout.Record) *PayoutRecordResponse {
	return &PayoutRecordResponse{
		ID:            rec.ID.String(),
		RecipientID:   rec.RecipientID,
		OrderID:       rec.OrderID,
		Direction:     string(rec.Direction),
		Amount:        rec.Amount.String(),
		Status:        string(rec.Status),
		TransactionID: rec.TransactionID,
		FailureReason: rec.FailureReason,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// FromDispute converts a dispute to an API response.
func FromDispute(d *dispute.Dispute, result *settlement.PayoutResult) *DisputeResponse {
	resp := &DisputeResponse{
		ID:         d.ID.String(),
		OrderID:    d.OrderID,
		StoreID:    d.StoreID,
		CustomerID: d.CustomerID,
		Reason:     d.Reason,
		Status:     string(d.Status),
		Resolution: d.Resolution,
		CreatedAt:  d.CreatedAt,
		ResolvedAt: d.ResolvedAt,
	}
	if result != nil {
		resp.Payout = FromPayoutResult(result)
	}
	return resp
}
