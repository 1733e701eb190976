package payout

import (
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tags which way funds move relative to the order.
type Direction string

const (
	// ToStore releases the settled order amount to the store owner.
	ToStore Direction = "to_store"
	// ToCustomer refunds the order amount back to the buyer.
	ToCustomer Direction = "to_customer"
)

// Status represents the payout attempt status
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusPending marks an attempt parked on a wallet-linkage gap,
	// waiting for a scheduled retry.
	StatusPending Status = "pending"
)

// Precision is the maximum number of decimal places the provider accepts
// for a transfer amount.
const Precision = 6

// Record is one disbursement attempt for an order. The ledger guarantees at
// most one completed record and at most one in-flight record per
// (recipient, order, direction).
type Record struct {
	ID            uuid.UUID
	RecipientID   string
	OrderID       string
	Direction     Direction
	Amount        decimal.Decimal
	Status        Status
	TransactionID *string
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRecord creates an in-progress payout attempt.
func NewRecord(recipientID, orderID string, direction Direction, amount decimal.Decimal) (*Record, error) {
	if recipientID == "" {
		return nil, errors.NewValidationError("recipient_id", "cannot be empty")
	}
	if orderID == "" {
		return nil, errors.NewValidationError("order_id", "cannot be empty")
	}
	if direction != ToStore && direction != ToCustomer {
		return nil, errors.NewValidationError("direction", "must be to_store or to_customer")
	}
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}

	now := time.Now()
	return &Record{
		ID:          uuid.New(),
		RecipientID: recipientID,
		OrderID:     orderID,
		Direction:   direction,
		Amount:      amount,
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsTerminal checks if the record is in a terminal state. Pending is not
// terminal: a scheduled retry will pick it back up.
func (r *Record) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// RoundAmount rounds a transfer amount to the provider's minimum unit
// precision. Amounts must never be submitted with more precision than the
// provider accepts.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Precision)
}

// IdempotencyKey derives the provider-side idempotency key for an order's
// disbursement. It is deterministic so duplicate submissions for the same
// (order, direction) are deduplicated by the provider as a second line of
// defense beyond the ledger claim.
func IdempotencyKey(orderID string, direction Direction) string {
	return fmt.Sprintf("payout:%s:%s", orderID, direction)
}
