package postgres

import (
	"context"
	"fmt"

	"github.com/cassiomorais/settlement/internal/domain/dispute"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DisputeRepository implements dispute.Repository using PostgreSQL.
type DisputeRepository struct {
	pool *pgxpool.Pool
}

// NewDisputeRepository creates a new DisputeRepository.
func NewDisputeRepository(pool *pgxpool.Pool) *DisputeRepository {
	return &DisputeRepository{pool: pool}
}

func (r *DisputeRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new dispute.
func (r *DisputeRepository) Create(ctx context.Context, d *dispute.Dispute) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO disputes
		 (id, order_id, store_id, customer_id, reason, status, resolution, created_at, resolved_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.OrderID, d.StoreID, d.CustomerID, d.Reason, string(d.Status),
		d.Resolution, d.CreatedAt, d.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

// GetByID retrieves a dispute.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	return r.scanDispute(r.db(ctx).QueryRow(ctx,
		`SELECT id, order_id, store_id, customer_id, reason, status, resolution, created_at, resolved_at
		 FROM disputes WHERE id = $1`, id))
}

// Update persists a dispute's state transition.
func (r *DisputeRepository) Update(ctx context.Context, d *dispute.Dispute) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE disputes SET status=$1, resolution=$2, resolved_at=$3
		 WHERE id=$4`,
		string(d.Status), d.Resolution, d.ResolvedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update dispute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrDisputeNotFound
	}
	return nil
}

// ListOpen lists open disputes, oldest first.
func (r *DisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]*dispute.Dispute, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, order_id, store_id, customer_id, reason, status, resolution, created_at, resolved_at
		 FROM disputes WHERE status = 'open'
		 ORDER BY created_at ASC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list open disputes: %w", err)
	}
	defer rows.Close()

	var disputes []*dispute.Dispute
	for rows.Next() {
		d, err := r.scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

func (r *DisputeRepository) scanDispute(s scanner) (*dispute.Dispute, error) {
	d := &dispute.Dispute{}
	var status string
	err := s.Scan(
		&d.ID, &d.OrderID, &d.StoreID, &d.CustomerID, &d.Reason, &status,
		&d.Resolution, &d.CreatedAt, &d.ResolvedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("scan dispute: %w", err)
	}
	d.Status = dispute.Status(status)
	return d, nil
}
