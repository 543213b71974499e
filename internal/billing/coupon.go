package billing

import (
	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/money"
)

var hundred = decimal.NewFromInt(100)

// CalculateAmount computes the discount a coupon takes from base. The result
// is capped at base and floored at zero, so a coupon can never push a balance
// negative.
func (c Coupon) CalculateAmount(base money.Money) money.Money {
	if base.IsNegative() || base.IsZero() {
		return money.Zero(base.Currency)
	}
	var computed money.Money
	switch c.Kind {
	case CouponFixed:
		computed = c.Amount
	case CouponPercentage:
		computed = base.MulDecimal(c.Percentage.Div(hundred))
	default:
		return money.Zero(base.Currency)
	}
	if computed.IsNegative() {
		return money.Zero(base.Currency)
	}
	return money.Min(computed, base)
}

// ApplyCouponsSequentially runs an ordered coupon list against base, each
// coupon discounting the remainder left by the previous one. Returns the
// individual discounts alongside the combined total.
func ApplyCouponsSequentially(coupons []Coupon, base money.Money) ([]money.Money, money.Money) {
	discounts := make([]money.Money, 0, len(coupons))
	total := money.Zero(base.Currency)
	remaining := base
	for _, c := range coupons {
		d := c.CalculateAmount(remaining)
		discounts = append(discounts, d)
		total = total.Add(d)
		remaining = remaining.Sub(d)
	}
	return discounts, total
}
