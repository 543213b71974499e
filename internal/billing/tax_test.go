package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func rate(name, pct string) TaxRate {
	return TaxRate{Name: name, Percentage: decimal.RequireFromString(pct)}
}

func TestTaxExclusiveSingleRate(t *testing.T) {
	res := CalculateTaxAmounts(usd("90.00"), TaxExclusive, []TaxRate{rate("vat", "20")})
	require.Equal(t, "90.00 USD", res.ExclusiveBase.String())
	require.Equal(t, "18.00 USD", res.Amounts[0].String())
	require.Equal(t, "18.00 USD", res.Total.String())
}

func TestTaxExclusiveMultipleRates(t *testing.T) {
	res := CalculateTaxAmounts(usd("100.00"), TaxExclusive, []TaxRate{
		rate("state", "7.25"),
		rate("city", "1.50"),
	})
	require.Equal(t, "7.25 USD", res.Amounts[0].String())
	require.Equal(t, "1.50 USD", res.Amounts[1].String())
	require.Equal(t, "8.75 USD", res.Total.String())
}

func TestTaxInclusiveBackCalculation(t *testing.T) {
	res := CalculateTaxAmounts(usd("108.00"), TaxInclusive, []TaxRate{rate("vat", "8")})
	require.Equal(t, "100.00 USD", res.ExclusiveBase.String())
	require.Equal(t, "8.00 USD", res.Total.String())

	res = CalculateTaxAmounts(usd("100.00"), TaxInclusive, []TaxRate{rate("vat", "20")})
	require.Equal(t, "83.33 USD", res.ExclusiveBase.String())
	require.Equal(t, "16.67 USD", res.Total.String())
	// Base and tax reconcile to the gross amount exactly.
	require.Equal(t, "100.00 USD", res.ExclusiveBase.Add(res.Total).String())
}

func TestTaxInclusiveMultiRateSplitReconciles(t *testing.T) {
	res := CalculateTaxAmounts(usd("100.00"), TaxInclusive, []TaxRate{
		rate("vat", "10"),
		rate("levy", "5"),
	})
	require.Equal(t, "86.96 USD", res.ExclusiveBase.String())
	require.Equal(t, "13.04 USD", res.Total.String())
	require.Equal(t, "8.69 USD", res.Amounts[0].String())
	// Last positive rate absorbs the rounding remainder.
	require.Equal(t, "4.35 USD", res.Amounts[1].String())
	require.Equal(t, res.Total.String(), res.Amounts[0].Add(res.Amounts[1]).String())
}

func TestTaxNonPositiveRatesYieldZero(t *testing.T) {
	res := CalculateTaxAmounts(usd("100.00"), TaxExclusive, []TaxRate{
		rate("exempt", "0"),
		rate("vat", "10"),
	})
	require.True(t, res.Amounts[0].IsZero())
	require.Equal(t, "10.00 USD", res.Amounts[1].String())
	require.Equal(t, "10.00 USD", res.Total.String())

	res = CalculateTaxAmounts(usd("100.00"), TaxInclusive, []TaxRate{rate("exempt", "0")})
	require.Equal(t, "100.00 USD", res.ExclusiveBase.String())
	require.True(t, res.Total.IsZero())
}

func TestTaxZeroTaxable(t *testing.T) {
	res := CalculateTaxAmounts(usd("0.00"), TaxInclusive, []TaxRate{rate("vat", "20")})
	require.True(t, res.ExclusiveBase.IsZero())
	require.True(t, res.Total.IsZero())
	require.Len(t, res.Amounts, 1)
	require.True(t, res.Amounts[0].IsZero())
}
