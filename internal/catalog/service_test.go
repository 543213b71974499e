package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	coupons  map[int64]billing.Coupon
	taxRates map[int64]billing.TaxRate
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{coupons: map[int64]billing.Coupon{}, taxRates: map[int64]billing.TaxRate{}}
}

func (m *memoryRepo) CreateCoupon(ctx context.Context, c *billing.Coupon) error {
	m.nextID++
	c.ID = m.nextID
	m.coupons[c.ID] = *c
	return nil
}

func (m *memoryRepo) GetCoupon(ctx context.Context, accountID, id int64) (billing.Coupon, error) {
	c, ok := m.coupons[id]
	if !ok || c.AccountID != accountID {
		return billing.Coupon{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) ListCoupons(ctx context.Context, accountID int64) ([]billing.Coupon, error) {
	var out []billing.Coupon
	for _, c := range m.coupons {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateTaxRate(ctx context.Context, t *billing.TaxRate) error {
	m.nextID++
	t.ID = m.nextID
	m.taxRates[t.ID] = *t
	return nil
}

func (m *memoryRepo) GetTaxRate(ctx context.Context, accountID, id int64) (billing.TaxRate, error) {
	t, ok := m.taxRates[id]
	if !ok || t.AccountID != accountID {
		return billing.TaxRate{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) ListTaxRates(ctx context.Context, accountID int64) ([]billing.TaxRate, error) {
	var out []billing.TaxRate
	for _, t := range m.taxRates {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestCreateFixedCouponRequiresPositiveAmount(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateCoupon(ctx, 1, CreateCouponRequest{Name: "Broken", Kind: billing.CouponFixed})
	require.ErrorIs(t, err, shared.ErrValidation)

	zero := money.Zero("USD")
	_, err = svc.CreateCoupon(ctx, 1, CreateCouponRequest{Name: "Zero", Kind: billing.CouponFixed, Amount: &zero})
	require.ErrorIs(t, err, shared.ErrValidation)

	ten := money.MustFromString("10.00", "USD")
	c, err := svc.CreateCoupon(ctx, 1, CreateCouponRequest{Name: "Ten off", Kind: billing.CouponFixed, Amount: &ten})
	require.NoError(t, err)
	require.NotZero(t, c.ID)
	require.Equal(t, "10.00", c.Amount.Amount.StringFixed(2))
}

func TestCreatePercentageCouponBounds(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	for _, pct := range []string{"0", "-5", "100.01"} {
		p := decimal.RequireFromString(pct)
		_, err := svc.CreateCoupon(ctx, 1, CreateCouponRequest{Name: "Bad", Kind: billing.CouponPercentage, Percentage: &p})
		require.ErrorIs(t, err, shared.ErrValidation, "percentage %s", pct)
	}

	p := decimal.NewFromInt(100)
	c, err := svc.CreateCoupon(ctx, 1, CreateCouponRequest{Name: "Full", Kind: billing.CouponPercentage, Percentage: &p})
	require.NoError(t, err)
	require.True(t, c.Percentage.Equal(p))
}

func TestCreateTaxRateCapsPercentage(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateTaxRate(ctx, 1, CreateTaxRateRequest{Name: "Too high", Percentage: decimal.RequireFromString("101")})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Non-positive rates are storable; they simply compute no tax.
	zero, err := svc.CreateTaxRate(ctx, 1, CreateTaxRateRequest{Name: "Exempt", Percentage: decimal.Zero})
	require.NoError(t, err)
	require.NotZero(t, zero.ID)
}

func TestCatalogScopedByAccount(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	p := decimal.NewFromInt(10)
	c, err := svc.CreateCoupon(ctx, 1, CreateCouponRequest{Name: "Mine", Kind: billing.CouponPercentage, Percentage: &p})
	require.NoError(t, err)

	_, err = svc.GetCoupon(ctx, 2, c.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	other, err := svc.ListCoupons(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, other)
}
