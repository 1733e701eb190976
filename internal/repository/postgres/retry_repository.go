package postgres

import (
	"context"
	"fmt"

	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RetryRepository implements payout.RetryQueue using PostgreSQL. Tasks survive
// restarts; Due uses SKIP LOCKED so multiple worker instances can poll the
// same table without handing out the same task twice.
type RetryRepository struct {
	pool *pgxpool.Pool
}

// NewRetryRepository creates a new RetryRepository.
func NewRetryRepository(pool *pgxpool.Pool) *RetryRepository {
	return &RetryRepository{pool: pool}
}

func (r *RetryRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Schedule inserts a retry task. At most one task exists per payout; a second
// schedule for the same payout moves its run time instead of queueing twice.
func (r *RetryRepository) Schedule(ctx context.Context, task *payout.RetryTask) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payout_retries
		 (id, payout_id, recipient_id, order_id, direction, amount, run_at, attempts, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (payout_id) DO UPDATE
		   SET run_at = EXCLUDED.run_at, attempts = payout_retries.attempts + 1`,
		task.ID, task.PayoutID, task.RecipientID, task.OrderID, string(task.Direction),
		task.Amount.String(), task.RunAt, task.Attempts, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("schedule payout retry: %w", err)
	}
	return nil
}

// Due claims up to limit tasks whose run time has passed. Claimed rows are
// deleted in the same statement; a task that still needs retrying gets
// rescheduled by the payout flow itself.
func (r *RetryRepository) Due(ctx context.Context, limit int) ([]*payout.RetryTask, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db(ctx).Query(ctx,
		`DELETE FROM payout_retries
		 WHERE id IN (
		   SELECT id FROM payout_retries
		   WHERE run_at <= NOW()
		   ORDER BY run_at
		   LIMIT $1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, payout_id, recipient_id, order_id, direction, amount, run_at, attempts, created_at`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due retries: %w", err)
	}
	defer rows.Close()

	var tasks []*payout.RetryTask
	for rows.Next() {
		task := &payout.RetryTask{}
		var (
			direction string
			amountStr string
		)
		if err := rows.Scan(
			&task.ID, &task.PayoutID, &task.RecipientID, &task.OrderID,
			&direction, &amountStr, &task.RunAt, &task.Attempts, &task.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan retry task: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse retry amount: %w", err)
		}
		task.Amount = amount
		task.Direction = payout.Direction(direction)
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
