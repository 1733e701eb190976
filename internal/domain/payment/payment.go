package payment

import (
	"time"

	"github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// Status represents the payment status in the state machine
type Status string

const (
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Record is the local ledger entry for a user-to-app payment, keyed by the
// provider-issued payment identifier. Records are never deleted; they form the
// audit trail of every payment the platform has seen.
type Record struct {
	PaymentID     string // provider identifier, unique
	UserID        string
	Amount        decimal.Decimal
	Memo          string
	Metadata      map[string]any
	Status        Status
	TransactionID *string
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// NewRecord creates an approved payment record. Records enter the ledger at
// approval time, before the provider approve call is made.
func NewRecord(paymentID, userID string, amount decimal.Decimal, memo string, metadata map[string]any) (*Record, error) {
	if paymentID == "" {
		return nil, errors.NewValidationError("payment_id", "cannot be empty")
	}
	if userID == "" {
		return nil, errors.NewValidationError("user_id", "cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}

	now := time.Now()
	return &Record{
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Memo:      memo,
		Metadata:  metadata,
		Status:    StatusApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanTransitionTo checks if the record can transition to the given status.
// Transitions are monotonic: completed is terminal and must never regress.
func (r *Record) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusApproved: {
			StatusCompleted,
			StatusCancelled,
			StatusFailed,
		},
		StatusCompleted: {}, // Terminal state
		StatusCancelled: {}, // Terminal state
		StatusFailed: {
			StatusCompleted, // Provider webhook may still confirm
			StatusCancelled,
		},
	}

	allowed, exists := transitions[r.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the record to a new status
func (r *Record) TransitionTo(newStatus Status) error {
	if !r.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(r.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	r.Status = newStatus
	r.UpdatedAt = time.Now()

	if newStatus == StatusCompleted || newStatus == StatusCancelled || newStatus == StatusFailed {
		now := time.Now()
		r.CompletedAt = &now
	}
	return nil
}

// MarkCompleted transitions the record to completed with the on-chain transaction id.
func (r *Record) MarkCompleted(txID string) error {
	if err := r.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	if txID != "" {
		r.TransactionID = &txID
	}
	return nil
}

// MarkCancelled transitions the record to cancelled status
func (r *Record) MarkCancelled() error {
	return r.TransitionTo(StatusCancelled)
}

// MarkFailed transitions the record to failed status
func (r *Record) MarkFailed(reason string) error {
	if err := r.TransitionTo(StatusFailed); err != nil {
		return err
	}
	r.FailureReason = &reason
	return nil
}

// IsTerminal checks if the record is in a terminal state
func (r *Record) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}

// metadata keys consumed by the settlement core; everything else is opaque
const (
	MetaOrderID      = "order_id"
	MetaStoreID      = "store_id"
	MetaItems        = "items"
	MetaCountry      = "delivery_country"
	MetaCity         = "delivery_city"
	MetaReconcileKey = "reconcile_note"
)

// OrderID extracts the order reference from the metadata blob, if present.
func (r *Record) OrderID() string {
	s, _ := r.Metadata[MetaOrderID].(string)
	return s
}

// StoreID extracts the store reference from the metadata blob, if present.
func (r *Record) StoreID() string {
	s, _ := r.Metadata[MetaStoreID].(string)
	return s
}
