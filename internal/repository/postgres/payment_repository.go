package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Record) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO payments
		 (payment_id, user_id, amount, memo, metadata, status,
		  transaction_id, failure_reason, created_at, updated_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.PaymentID, p.UserID, p.Amount.String(), p.Memo, metadata, string(p.Status),
		p.TransactionID, p.FailureReason, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrPaymentExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByPaymentID retrieves a record by the provider payment identifier.
func (r *PaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*payment.Record, error) {
	return r.scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT payment_id, user_id, amount, memo, metadata, status,
		        transaction_id, failure_reason, created_at, updated_at, completed_at
		 FROM payments WHERE payment_id = $1`, paymentID))
}

// Update updates an existing record.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Record) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payments SET
		  status=$1, transaction_id=$2, failure_reason=$3,
		  metadata=$4, updated_at=NOW(), completed_at=$5
		 WHERE payment_id=$6`,
		string(p.Status), p.TransactionID, p.FailureReason,
		metadata, p.CompletedAt, p.PaymentID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPaymentNotFound
	}
	return nil
}

// MarkCompleted transitions a record to completed with a single conditional
// UPDATE. The WHERE clause is the race arbiter: the first caller flips the
// status, every later caller affects zero rows and reports false. Only
// approved and failed records qualify; cancelled and completed are terminal.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, paymentID, txID string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payments SET
		  status=$1, transaction_id=$2, updated_at=NOW(), completed_at=NOW()
		 WHERE payment_id=$3 AND status IN ($4, $5)`,
		string(payment.StatusCompleted), txID, paymentID,
		string(payment.StatusApproved), string(payment.StatusFailed),
	)
	if err != nil {
		return false, fmt.Errorf("mark payment completed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser lists payment records for a user, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*payment.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT payment_id, user_id, amount, memo, metadata, status,
		        transaction_id, failure_reason, created_at, updated_at, completed_at
		 FROM payments WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var records []*payment.Record
	for rows.Next() {
		p, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// scanRecord scans a payment record from any source implementing the scanner interface.
func (r *PaymentRepository) scanRecord(s scanner) (*payment.Record, error) {
	p := &payment.Record{Metadata: make(map[string]any)}
	var (
		amountStr string
		status    string
		metadata  []byte
	)
	err := s.Scan(
		&p.PaymentID, &p.UserID, &amountStr, &p.Memo, &metadata, &status,
		&p.TransactionID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	p.Amount = amount
	p.Status = payment.Status(status)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal payment metadata: %w", err)
		}
	}
	return p, nil
}
