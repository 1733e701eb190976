package payment

import (
	"context"
)

// Repository defines the interface for payment ledger persistence
type Repository interface {
	// Create inserts a new payment record
	Create(ctx context.Context, record *Record) error

	// GetByPaymentID retrieves a record by the provider payment identifier
	GetByPaymentID(ctx context.Context, paymentID string) (*Record, error)

	// Update updates an existing record
	Update(ctx context.Context, record *Record) error

	// MarkCompleted transitions a record to completed only if it has not
	// already been completed. Returns true when this call won the transition,
	// false when another caller completed it first.
	MarkCompleted(ctx context.Context, paymentID, txID string) (bool, error)

	// ListByUser lists payment records for a user, newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Record, error)
}
