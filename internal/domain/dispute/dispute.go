package dispute

import (
	"time"

	"github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
)

// Status represents the dispute state. Both resolved and rejected are terminal.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved" // refund path
	StatusRejected Status = "rejected" // dismiss path, payout released
)

// Dispute is a buyer report against an order, pending a refund-or-release decision.
type Dispute struct {
	ID         uuid.UUID
	OrderID    string
	StoreID    string
	CustomerID string
	Reason     string
	Status     Status
	Resolution *string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// NewDispute opens a dispute for an order.
func NewDispute(orderID, storeID, customerID, reason string) (*Dispute, error) {
	if orderID == "" {
		return nil, errors.NewValidationError("order_id", "cannot be empty")
	}
	if customerID == "" {
		return nil, errors.NewValidationError("customer_id", "cannot be empty")
	}
	return &Dispute{
		ID:         uuid.New(),
		OrderID:    orderID,
		StoreID:    storeID,
		CustomerID: customerID,
		Reason:     reason,
		Status:     StatusOpen,
		CreatedAt:  time.Now(),
	}, nil
}

// Close transitions an open dispute to a terminal status.
func (d *Dispute) Close(status Status, resolution string) error {
	if d.Status != StatusOpen {
		return errors.NewDomainError(
			"dispute_closed",
			"dispute is already "+string(d.Status),
			errors.ErrDisputeClosed,
		)
	}
	if status != StatusResolved && status != StatusRejected {
		return errors.NewValidationError("status", "must be resolved or rejected")
	}
	d.Status = status
	if resolution != "" {
		d.Resolution = &resolution
	}
	now := time.Now()
	d.ResolvedAt = &now
	return nil
}
