package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PayoutRepository implements payout.Repository using PostgreSQL. Two partial
// unique indexes back the ledger invariant: at most one completed and at most
// one in-progress row per (recipient_id, order_id, direction).
type PayoutRepository struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
}

// NewPayoutRepository creates a new PayoutRepository.
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

// WithMetrics enables claim and in-flight gauges on the repository.
func (r *PayoutRepository) WithMetrics(m *observability.Metrics) *PayoutRepository {
	r.metrics = m
	return r
}

func (r *PayoutRepository) observeClaim(outcome payout.ClaimOutcome) {
	if r.metrics == nil {
		return
	}
	switch outcome {
	case payout.ClaimNew:
		r.metrics.PayoutsInProgress.Inc()
	default:
		r.metrics.DuplicateClaims.WithLabelValues(string(outcome)).Inc()
	}
}

func (r *PayoutRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// ClaimAttempt atomically claims the disbursement slot for
// (recipient, order, direction). It runs its own transaction: the row lock
// taken by SELECT FOR UPDATE serializes concurrent claims, and the partial
// unique index on in-progress rows backstops the insert race.
func (r *PayoutRepository) ClaimAttempt(ctx context.Context, recipientID, orderID string, direction payout.Direction, amount decimal.Decimal) (*payout.ClaimResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, status, transaction_id
		 FROM payouts
		 WHERE recipient_id = $1 AND order_id = $2 AND direction = $3
		   AND status IN ('completed', 'in_progress', 'pending')
		 ORDER BY created_at DESC
		 FOR UPDATE`,
		recipientID, orderID, string(direction),
	)
	if err != nil {
		return nil, fmt.Errorf("query existing payouts: %w", err)
	}

	var (
		pendingID     *uuid.UUID
		inProgress    bool
		completedTxID *string
		completed     bool
	)
	for rows.Next() {
		var (
			id     uuid.UUID
			status string
			txID   *string
		)
		if err := rows.Scan(&id, &status, &txID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		switch payout.Status(status) {
		case payout.StatusCompleted:
			completed = true
			completedTxID = txID
		case payout.StatusInProgress:
			inProgress = true
		case payout.StatusPending:
			if pendingID == nil {
				idCopy := id
				pendingID = &idCopy
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout rows: %w", err)
	}

	// A completed attempt wins over everything else.
	if completed {
		var txID string
		if completedTxID != nil {
			txID = *completedTxID
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit claim tx: %w", err)
		}
		r.observeClaim(payout.ClaimAlreadyCompleted)
		return &payout.ClaimResult{Outcome: payout.ClaimAlreadyCompleted, TransactionID: txID}, nil
	}
	if inProgress {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit claim tx: %w", err)
		}
		r.observeClaim(payout.ClaimInProgress)
		return &payout.ClaimResult{Outcome: payout.ClaimInProgress}, nil
	}

	// A pending row parked by a wallet-linkage retry is reused rather than
	// leaving an orphan behind.
	if pendingID != nil {
		_, err := tx.Exec(ctx,
			`UPDATE payouts SET status = 'in_progress', amount = $1, failure_reason = NULL, updated_at = NOW()
			 WHERE id = $2`,
			amount.String(), *pendingID,
		)
		if err != nil {
			return nil, fmt.Errorf("reclaim pending payout: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit claim tx: %w", err)
		}
		r.observeClaim(payout.ClaimNew)
		return &payout.ClaimResult{Outcome: payout.ClaimNew, PayoutID: *pendingID}, nil
	}

	record, err := payout.NewRecord(recipientID, orderID, direction, amount)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO payouts
		 (id, recipient_id, order_id, direction, amount, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		record.ID, record.RecipientID, record.OrderID, string(record.Direction),
		record.Amount.String(), string(record.Status), record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the insert race to a concurrent claim.
			r.observeClaim(payout.ClaimInProgress)
			return &payout.ClaimResult{Outcome: payout.ClaimInProgress}, nil
		}
		return nil, fmt.Errorf("insert payout: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	r.observeClaim(payout.ClaimNew)
	return &payout.ClaimResult{Outcome: payout.ClaimNew, PayoutID: record.ID}, nil
}

// Finalize patches the claimed record to its outcome status.
func (r *PayoutRepository) Finalize(ctx context.Context, payoutID uuid.UUID, status payout.Status, txID, failureReason *string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payouts SET status=$1, transaction_id=$2, failure_reason=$3, updated_at=NOW()
		 WHERE id=$4`,
		string(status), txID, failureReason, payoutID,
	)
	if err != nil {
		return fmt.Errorf("finalize payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPayoutNotFound
	}
	if r.metrics != nil && status != payout.StatusInProgress {
		r.metrics.PayoutsInProgress.Dec()
	}
	return nil
}

// GetByID retrieves a payout record.
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Record, error) {
	return r.scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT id, recipient_id, order_id, direction, amount, status,
		        transaction_id, failure_reason, created_at, updated_at
		 FROM payouts WHERE id = $1`, id))
}

// GetByOrder retrieves all attempts for an order, newest first.
func (r *PayoutRepository) GetByOrder(ctx context.Context, orderID string) ([]*payout.Record, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, recipient_id, order_id, direction, amount, status,
		        transaction_id, failure_reason, created_at, updated_at
		 FROM payouts WHERE order_id = $1
		 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var records []*payout.Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReleaseStale flips in-progress records older than the cutoff to failed.
func (r *PayoutRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payouts SET status='failed', failure_reason='released as stale', updated_at=NOW()
		 WHERE status='in_progress' AND updated_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("release stale payouts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PayoutRepository) scanRecord(s scanner) (*payout.Record, error) {
	rec := &payout.Record{}
	var (
		direction string
		amountStr string
		status    string
	)
	err := s.Scan(
		&rec.ID, &rec.RecipientID, &rec.OrderID, &direction, &amountStr, &status,
		&rec.TransactionID, &rec.FailureReason, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("scan payout: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	rec.Amount = amount
	rec.Direction = payout.Direction(direction)
	rec.Status = payout.Status(status)
	return rec, nil
}
