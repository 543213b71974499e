// Package catalog manages the reusable coupons and tax rates an account
// attaches to documents. Documents snapshot what they attach; later catalog
// edits never reach a finalized document.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/shared"
)

// Repository is the persistence surface the service needs, satisfied by the
// billing store.
type Repository interface {
	CreateCoupon(ctx context.Context, c *billing.Coupon) error
	GetCoupon(ctx context.Context, accountID, id int64) (billing.Coupon, error)
	ListCoupons(ctx context.Context, accountID int64) ([]billing.Coupon, error)
	CreateTaxRate(ctx context.Context, t *billing.TaxRate) error
	GetTaxRate(ctx context.Context, accountID, id int64) (billing.TaxRate, error)
	ListTaxRates(ctx context.Context, accountID int64) ([]billing.TaxRate, error)
}

// Service validates and stores catalog entries.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateCouponRequest carries a new coupon. Fixed coupons need an amount,
// percentage coupons a percentage in (0, 100].
type CreateCouponRequest struct {
	Name       string             `json:"name" validate:"required,max=200"`
	Kind       billing.CouponKind `json:"kind" validate:"required,oneof=FIXED PERCENTAGE"`
	Amount     *money.Money       `json:"amount,omitempty"`
	Percentage *decimal.Decimal   `json:"percentage,omitempty"`
}

// CreateCoupon validates and stores a coupon.
func (s *Service) CreateCoupon(ctx context.Context, accountID int64, req CreateCouponRequest) (billing.Coupon, error) {
	c := billing.Coupon{AccountID: accountID, Name: req.Name, Kind: req.Kind}
	switch req.Kind {
	case billing.CouponFixed:
		if req.Amount == nil || req.Amount.IsNegative() || req.Amount.IsZero() {
			return billing.Coupon{}, fmt.Errorf("%w: fixed coupon requires a positive amount", shared.ErrValidation)
		}
		if req.Amount.Currency == "" {
			return billing.Coupon{}, fmt.Errorf("%w: fixed coupon requires a currency", shared.ErrValidation)
		}
		c.Amount = *req.Amount
	case billing.CouponPercentage:
		if req.Percentage == nil || req.Percentage.IsNegative() || req.Percentage.IsZero() ||
			req.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return billing.Coupon{}, fmt.Errorf("%w: percentage must be in (0, 100]", shared.ErrValidation)
		}
		c.Percentage = *req.Percentage
	}
	if err := s.repo.CreateCoupon(ctx, &c); err != nil {
		return billing.Coupon{}, err
	}
	return c, nil
}

// GetCoupon loads one coupon.
func (s *Service) GetCoupon(ctx context.Context, accountID, id int64) (billing.Coupon, error) {
	return s.repo.GetCoupon(ctx, accountID, id)
}

// ListCoupons returns the account's coupons.
func (s *Service) ListCoupons(ctx context.Context, accountID int64) ([]billing.Coupon, error) {
	return s.repo.ListCoupons(ctx, accountID)
}

// CreateTaxRateRequest carries a new tax rate. Non-positive percentages are
// storable but always compute to zero tax.
type CreateTaxRateRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Percentage decimal.Decimal `json:"percentage"`
}

// CreateTaxRate validates and stores a tax rate.
func (s *Service) CreateTaxRate(ctx context.Context, accountID int64, req CreateTaxRateRequest) (billing.TaxRate, error) {
	if req.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return billing.TaxRate{}, fmt.Errorf("%w: percentage must not exceed 100", shared.ErrValidation)
	}
	t := billing.TaxRate{AccountID: accountID, Name: req.Name, Percentage: req.Percentage}
	if err := s.repo.CreateTaxRate(ctx, &t); err != nil {
		return billing.TaxRate{}, err
	}
	return t, nil
}

// GetTaxRate loads one tax rate.
func (s *Service) GetTaxRate(ctx context.Context, accountID, id int64) (billing.TaxRate, error) {
	return s.repo.GetTaxRate(ctx, accountID, id)
}

// ListTaxRates returns the account's tax rates.
func (s *Service) ListTaxRates(ctx context.Context, accountID int64) ([]billing.TaxRate, error) {
	return s.repo.ListTaxRates(ctx, accountID)
}
