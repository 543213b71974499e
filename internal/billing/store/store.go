// Package store persists billing documents, their lines and allocations, and
// the coupon and tax-rate catalogs. Invoices, credit notes, and quotes share
// one table set discriminated by doc_type.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billhaven/billhaven/internal/shared"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so every store
// method can run standalone or inside a caller-owned transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides PostgreSQL backed persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for db.WithTx callers.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

const uniqueViolation = "23505"

// mapPgError converts constraint violations into the shared taxonomy.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == uniqueViolation {
		return shared.ErrConflict
	}
	return err
}
