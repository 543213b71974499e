package numbering

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billhaven/billhaven/internal/shared"
)

// RepositoryPort abstracts persistence for numbering systems.
type RepositoryPort interface {
	Create(ctx context.Context, s *System) error
	GetByID(ctx context.Context, accountID, id int64) (System, error)
	ListByAccount(ctx context.Context, accountID int64) ([]System, error)
	// NextSequence atomically advances the per-period counter and returns
	// the new position. The period key derives from CalculateBounds.
	NextSequence(ctx context.Context, systemID int64, periodStart time.Time) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, s *System) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO numbering_systems (account_id, name, pattern, padding, reset_frequency, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, created_at
	`, s.AccountID, s.Name, s.Pattern, s.Padding, s.Reset).Scan(&s.ID, &s.CreatedAt)
}

func (r *repository) GetByID(ctx context.Context, accountID, id int64) (System, error) {
	var s System
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, name, pattern, padding, reset_frequency, created_at
		FROM numbering_systems
		WHERE account_id = $1 AND id = $2
	`, accountID, id).Scan(&s.ID, &s.AccountID, &s.Name, &s.Pattern, &s.Padding, &s.Reset, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return System{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) ListByAccount(ctx context.Context, accountID int64) ([]System, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, name, pattern, padding, reset_frequency, created_at
		FROM numbering_systems
		WHERE account_id = $1
		ORDER BY id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []System
	for rows.Next() {
		var s System
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Name, &s.Pattern, &s.Padding, &s.Reset, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) NextSequence(ctx context.Context, systemID int64, periodStart time.Time) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO numbering_sequences (system_id, period_start, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (system_id, period_start)
		DO UPDATE SET seq = numbering_sequences.seq + 1
		RETURNING seq
	`, systemID, periodStart).Scan(&seq)
	return seq, err
}
