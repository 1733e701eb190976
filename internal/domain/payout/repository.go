package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClaimOutcome classifies the result of attempting to claim a disbursement slot.
type ClaimOutcome string

const (
	// ClaimNew means the caller owns a fresh in-progress attempt and must
	// either finalize it or leave it stuck.
	ClaimNew ClaimOutcome = "new"
	// ClaimAlreadyCompleted means a prior attempt settled the order; the
	// caller must treat this as success without re-disbursing.
	ClaimAlreadyCompleted ClaimOutcome = "already_completed"
	// ClaimInProgress means another attempt is in flight; the caller must
	// abort without side effects.
	ClaimInProgress ClaimOutcome = "in_progress"
)

// ClaimResult is what ClaimAttempt hands back to the payout flow.
type ClaimResult struct {
	Outcome       ClaimOutcome
	PayoutID      uuid.UUID // set when Outcome == ClaimNew
	TransactionID string    // set when Outcome == ClaimAlreadyCompleted
}

// Repository defines the interface for the payout ledger.
type Repository interface {
	// ClaimAttempt atomically claims the disbursement slot for
	// (recipient, order, direction). A pending record left by a wallet-linkage
	// retry is reused and moved back to in_progress. The check-and-create is a
	// single isolation-guaranteed round trip: two concurrent claims for the
	// same slot never both observe ClaimNew.
	ClaimAttempt(ctx context.Context, recipientID, orderID string, direction Direction, amount decimal.Decimal) (*ClaimResult, error)

	// Finalize patches the claimed record to a terminal (or pending-retry)
	// status. Only the owner of the in-progress record calls this.
	Finalize(ctx context.Context, payoutID uuid.UUID, status Status, txID, failureReason *string) error

	// GetByID retrieves a payout record
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// GetByOrder retrieves all attempts for an order, newest first
	GetByOrder(ctx context.Context, orderID string) ([]*Record, error)

	// ReleaseStale flips in-progress records older than the cutoff to failed.
	// Administrative escape hatch for attempts orphaned by a crash between
	// claim and finalize; nothing runs this automatically.
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// RetryTask is a scheduled re-run of the payout flow with its full payload,
// persisted so a restart does not lose it.
type RetryTask struct {
	ID          uuid.UUID
	PayoutID    uuid.UUID
	RecipientID string
	OrderID     string
	Direction   Direction
	Amount      decimal.Decimal
	RunAt       time.Time
	Attempts    int
	CreatedAt   time.Time
}

// RetryScheduler is the delayed-task contract the payout flow requires:
// "run this idempotent operation again no earlier than RunAt". At most one
// task is scheduled per payout record.
type RetryScheduler interface {
	Schedule(ctx context.Context, task *RetryTask) error
}

// RetryQueue is the worker-side view of scheduled retries.
type RetryQueue interface {
	RetryScheduler

	// Due claims up to limit tasks whose RunAt has passed. Claimed tasks are
	// not returned to other consumers.
	Due(ctx context.Context, limit int) ([]*RetryTask, error)
}
