package payments

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/money"
)

// RepositoryPort abstracts payment persistence.
type RepositoryPort interface {
	Create(ctx context.Context, p *Payment) error
	ListByInvoice(ctx context.Context, accountID, invoiceID int64) ([]Payment, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a payment record.
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	return r.pool.QueryRow(ctx, `INSERT INTO payments (account_id, invoice_id, amount, currency, status, transaction_id, checkout_url, failure_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now()) RETURNING id, created_at`,
		p.AccountID, p.InvoiceID, p.Amount.Amount, p.Amount.Currency, p.Status,
		p.TransactionID, p.CheckoutURL, p.FailureReason,
	).Scan(&p.ID, &p.CreatedAt)
}

// ListByInvoice returns the invoice's payment records, oldest first.
func (r *Repository) ListByInvoice(ctx context.Context, accountID, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, account_id, invoice_id, amount, currency, status, transaction_id, checkout_url, failure_reason, created_at
FROM payments WHERE account_id = $1 AND invoice_id = $2 ORDER BY id`, accountID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var amount decimal.Decimal
		var currency string
		if err := rows.Scan(&p.ID, &p.AccountID, &p.InvoiceID, &amount, &currency, &p.Status, &p.TransactionID, &p.CheckoutURL, &p.FailureReason, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount = money.New(amount, currency)
		out = append(out, p)
	}
	return out, rows.Err()
}
