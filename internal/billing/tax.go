package billing

import (
	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/money"
)

// TaxResult carries the outcome of a tax computation over one taxable base.
type TaxResult struct {
	// ExclusiveBase is the base with tax stripped out (equal to the input
	// base under exclusive behavior).
	ExclusiveBase money.Money
	// Amounts holds one tax amount per input rate, preserving order.
	Amounts []money.Money
	// Total is the sum of Amounts. ExclusiveBase + Total reconciles exactly
	// with the gross amount in both behaviors.
	Total money.Money
}

// CalculateTaxAmounts computes per-rate tax over a taxable base.
//
// Under exclusive behavior each rate taxes the base independently:
// tax_i = base × rate_i/100. Under inclusive behavior the base already
// contains tax; the exclusive portion is back-calculated with the combined
// multiplier 1 + Σrates/100 and the extracted tax is split across rates
// proportionally to each rate's share, with the rounding remainder assigned
// to the last positive rate so the split reconciles exactly.
//
// Rates ≤ 0 always yield zero tax and do not participate in the split.
func CalculateTaxAmounts(taxable money.Money, behavior TaxBehavior, rates []TaxRate) TaxResult {
	res := TaxResult{
		ExclusiveBase: taxable,
		Amounts:       make([]money.Money, len(rates)),
		Total:         money.Zero(taxable.Currency),
	}
	for i := range res.Amounts {
		res.Amounts[i] = money.Zero(taxable.Currency)
	}

	rateSum := decimal.Zero
	lastPositive := -1
	for i, r := range rates {
		if r.Percentage.IsPositive() {
			rateSum = rateSum.Add(r.Percentage)
			lastPositive = i
		}
	}
	if lastPositive == -1 || taxable.IsZero() {
		return res
	}

	if behavior == TaxInclusive {
		multiplier := decimal.NewFromInt(1).Add(rateSum.Div(hundred))
		excl := taxable.DivDecimal(multiplier)
		totalTax := taxable.Sub(excl)

		assigned := money.Zero(taxable.Currency)
		for i, r := range rates {
			if !r.Percentage.IsPositive() {
				continue
			}
			if i == lastPositive {
				res.Amounts[i] = totalTax.Sub(assigned)
				continue
			}
			share := totalTax.MulDecimal(r.Percentage.Div(rateSum))
			res.Amounts[i] = share
			assigned = assigned.Add(share)
		}
		res.ExclusiveBase = excl
		res.Total = totalTax
		return res
	}

	total := money.Zero(taxable.Currency)
	for i, r := range rates {
		if !r.Percentage.IsPositive() {
			continue
		}
		amt := taxable.MulDecimal(r.Percentage.Div(hundred))
		res.Amounts[i] = amt
		total = total.Add(amt)
	}
	res.Total = total
	return res
}
