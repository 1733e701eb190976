package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ctxKey int

const txKey ctxKey = iota

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx. Every
// repository resolves it per call through ConnFromCtx, so the same method
// works inside and outside a transaction.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows, letting each repository
// share one scan function between single-row and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}

// TxManager groups ledger writes that must land together. The payout claim
// carries its own transaction; TxManager is for callers composing several
// repository calls atomically.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a new TxManager over the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTransaction runs fn with a transaction stashed in the context. Every
// repository call inside fn joins that transaction; fn returning nil commits,
// anything else rolls back.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after error: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ConnFromCtx returns the in-flight transaction when one is stashed in the
// context, otherwise the pool.
func ConnFromCtx(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return pool
}
