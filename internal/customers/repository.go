package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billhaven/billhaven/internal/shared"
)

// RepositoryPort abstracts customer persistence.
type RepositoryPort interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, accountID, id int64) (*Customer, error)
	List(ctx context.Context, accountID int64, page, perPage int) ([]Customer, int, error)
	Update(ctx context.Context, accountID, id int64, updates map[string]any) error
	CreateSnapshot(ctx context.Context, s *Snapshot) error
	GetSnapshot(ctx context.Context, id int64) (*Snapshot, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, account_id, name, email, phone, tax_number, address_line1, address_line2, city, postal_code, country, currency, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Email, &c.Phone, &c.TaxNumber,
		&c.AddressLine1, &c.AddressLine2, &c.City, &c.PostalCode, &c.Country,
		&c.Currency, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a customer and fills the generated fields.
func (r *Repository) Create(ctx context.Context, c *Customer) error {
	return r.pool.QueryRow(ctx, `INSERT INTO customers (account_id, name, email, phone, tax_number, address_line1, address_line2, city, postal_code, country, currency, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now()) RETURNING id, created_at, updated_at`,
		c.AccountID, c.Name, c.Email, c.Phone, c.TaxNumber, c.AddressLine1, c.AddressLine2,
		c.City, c.PostalCode, c.Country, c.Currency, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID loads one customer scoped to the account.
func (r *Repository) GetByID(ctx context.Context, accountID, id int64) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE account_id = $1 AND id = $2`, accountID, id)
	return scanCustomer(row)
}

// List returns a page of customers plus the total count.
func (r *Repository) List(ctx context.Context, accountID int64, page, perPage int) ([]Customer, int, error) {
	p := shared.NewPagination(page, perPage, 0)
	offset := (p.Page - 1) * p.PerPage

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM customers WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE account_id = $1 ORDER BY id LIMIT $2 OFFSET $3`, accountID, p.PerPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// Update applies a partial column update.
func (r *Repository) Update(ctx context.Context, accountID, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	sets := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	i := 1
	for col, v := range updates {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, v)
		i++
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, accountID, id)
	q := fmt.Sprintf(`UPDATE customers SET %s WHERE account_id = $%d AND id = $%d`, strings.Join(sets, ", "), i, i+1)
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateSnapshot persists an immutable billing snapshot.
func (r *Repository) CreateSnapshot(ctx context.Context, s *Snapshot) error {
	return r.pool.QueryRow(ctx, `INSERT INTO customer_snapshots (customer_id, name, email, tax_number, address_line1, address_line2, city, postal_code, country, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now()) RETURNING id, created_at`,
		s.CustomerID, s.Name, s.Email, s.TaxNumber, s.AddressLine1, s.AddressLine2,
		s.City, s.PostalCode, s.Country,
	).Scan(&s.ID, &s.CreatedAt)
}

// GetSnapshot loads one snapshot.
func (r *Repository) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	var s Snapshot
	err := r.pool.QueryRow(ctx, `SELECT id, customer_id, name, email, tax_number, address_line1, address_line2, city, postal_code, country, created_at FROM customer_snapshots WHERE id = $1`, id).
		Scan(&s.ID, &s.CustomerID, &s.Name, &s.Email, &s.TaxNumber, &s.AddressLine1, &s.AddressLine2, &s.City, &s.PostalCode, &s.Country, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
