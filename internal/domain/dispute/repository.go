package dispute

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for dispute persistence
type Repository interface {
	// Create inserts a new dispute
	Create(ctx context.Context, d *Dispute) error

	// GetByID retrieves a dispute by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Dispute, error)

	// Update updates an existing dispute
	Update(ctx context.Context, d *Dispute) error

	// ListOpen lists open disputes, oldest first
	ListOpen(ctx context.Context, limit, offset int) ([]*Dispute, error)
}
