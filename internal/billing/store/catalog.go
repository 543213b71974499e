package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/shared"
)

// CreateCoupon inserts a catalog coupon.
func (s *Store) CreateCoupon(ctx context.Context, c *billing.Coupon) error {
	var amount *decimal.Decimal
	var currency *string
	if c.Kind == billing.CouponFixed {
		amount = &c.Amount.Amount
		currency = &c.Amount.Currency
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO coupons (account_id, name, kind, amount, currency, percentage)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.AccountID, c.Name, c.Kind, amount, currency, c.Percentage,
	).Scan(&c.ID)
	return mapPgError(err)
}

// GetCoupon loads one coupon scoped to the account.
func (s *Store) GetCoupon(ctx context.Context, accountID, id int64) (billing.Coupon, error) {
	return scanCoupon(s.pool.QueryRow(ctx, `SELECT id, account_id, name, kind, amount, currency, percentage FROM coupons WHERE account_id = $1 AND id = $2`, accountID, id))
}

// ListCoupons returns the account's coupon catalog.
func (s *Store) ListCoupons(ctx context.Context, accountID int64) ([]billing.Coupon, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, account_id, name, kind, amount, currency, percentage FROM coupons WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCoupon(row pgx.Row) (billing.Coupon, error) {
	var c billing.Coupon
	var amount *decimal.Decimal
	var currency *string
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Kind, &amount, &currency, &c.Percentage)
	if errors.Is(err, pgx.ErrNoRows) {
		return billing.Coupon{}, shared.ErrNotFound
	}
	if err != nil {
		return billing.Coupon{}, err
	}
	if amount != nil && currency != nil {
		c.Amount = money.New(*amount, *currency)
	}
	return c, nil
}

// CreateTaxRate inserts a catalog tax rate.
func (s *Store) CreateTaxRate(ctx context.Context, t *billing.TaxRate) error {
	err := s.pool.QueryRow(ctx, `INSERT INTO tax_rates (account_id, name, percentage)
VALUES ($1, $2, $3) RETURNING id`, t.AccountID, t.Name, t.Percentage).Scan(&t.ID)
	return mapPgError(err)
}

// GetTaxRate loads one tax rate scoped to the account.
func (s *Store) GetTaxRate(ctx context.Context, accountID, id int64) (billing.TaxRate, error) {
	var t billing.TaxRate
	err := s.pool.QueryRow(ctx, `SELECT id, account_id, name, percentage FROM tax_rates WHERE account_id = $1 AND id = $2`, accountID, id).
		Scan(&t.ID, &t.AccountID, &t.Name, &t.Percentage)
	if errors.Is(err, pgx.ErrNoRows) {
		return billing.TaxRate{}, shared.ErrNotFound
	}
	return t, err
}

// ListTaxRates returns the account's tax rates.
func (s *Store) ListTaxRates(ctx context.Context, accountID int64) ([]billing.TaxRate, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, account_id, name, percentage FROM tax_rates WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.TaxRate
	for rows.Next() {
		var t billing.TaxRate
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.Percentage); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
