package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/billhaven/billhaven/internal/money"
)

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func upTo(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func tieredPrice(model Model) Price {
	return Price{
		Currency: "USD",
		Model:    model,
		Tiers: []Tier{
			{UpTo: upTo("10"), UnitAmount: money.MustFromString("5.00", "USD"), FlatAmount: money.Zero("USD")},
			{UpTo: upTo("20"), UnitAmount: money.MustFromString("4.00", "USD"), FlatAmount: money.Zero("USD")},
			{UpTo: nil, UnitAmount: money.MustFromString("3.00", "USD"), FlatAmount: money.Zero("USD")},
		},
	}
}

func TestFlatPrice(t *testing.T) {
	p := Price{Currency: "USD", Model: ModelFlat, UnitAmount: money.MustFromString("9.99", "USD")}
	got, err := p.CalculateAmount(qty("3"))
	require.NoError(t, err)
	require.Equal(t, "29.97 USD", got.String())

	unit, err := p.CalculateUnitAmount(qty("3"))
	require.NoError(t, err)
	require.Equal(t, "9.99 USD", unit.String())
}

func TestVolumePricePicksContainingTier(t *testing.T) {
	p := tieredPrice(ModelVolume)

	got, err := p.CalculateAmount(qty("10"))
	require.NoError(t, err)
	require.Equal(t, "50.00 USD", got.String())

	got, err = p.CalculateAmount(qty("15"))
	require.NoError(t, err)
	require.Equal(t, "60.00 USD", got.String())

	got, err = p.CalculateAmount(qty("100"))
	require.NoError(t, err)
	require.Equal(t, "300.00 USD", got.String())
}

func TestGraduatedPriceSpansTiers(t *testing.T) {
	p := tieredPrice(ModelGraduated)

	// 10×5 + 5×4 = 70
	got, err := p.CalculateAmount(qty("15"))
	require.NoError(t, err)
	require.Equal(t, "70.00 USD", got.String())

	// 10×5 + 10×4 + 5×3 = 105
	got, err = p.CalculateAmount(qty("25"))
	require.NoError(t, err)
	require.Equal(t, "105.00 USD", got.String())

	// Entirely inside the first tier.
	got, err = p.CalculateAmount(qty("4"))
	require.NoError(t, err)
	require.Equal(t, "20.00 USD", got.String())
}

func TestGraduatedUnitAmount(t *testing.T) {
	p := tieredPrice(ModelGraduated)
	unit, err := p.CalculateUnitAmount(qty("15"))
	require.NoError(t, err)
	require.Equal(t, "4.67 USD", unit.String())
}

func TestGraduatedFlatFees(t *testing.T) {
	p := Price{
		Currency: "USD",
		Model:    ModelGraduated,
		Tiers: []Tier{
			{UpTo: upTo("5"), UnitAmount: money.MustFromString("1.00", "USD"), FlatAmount: money.MustFromString("10.00", "USD")},
			{UpTo: nil, UnitAmount: money.MustFromString("0.50", "USD"), FlatAmount: money.MustFromString("2.00", "USD")},
		},
	}
	// 10 + 5×1 + 2 + 3×0.5 = 18.50
	got, err := p.CalculateAmount(qty("8"))
	require.NoError(t, err)
	require.Equal(t, "18.50 USD", got.String())
}

func TestVolumeNoTierForQuantity(t *testing.T) {
	p := Price{
		Currency: "USD",
		Model:    ModelVolume,
		Tiers: []Tier{
			{UpTo: upTo("10"), UnitAmount: money.MustFromString("5.00", "USD"), FlatAmount: money.Zero("USD")},
		},
	}
	_, err := p.CalculateAmount(qty("11"))
	require.ErrorIs(t, err, ErrNoTierForQuantity)
}

func TestValidate(t *testing.T) {
	p := tieredPrice(ModelVolume)
	require.NoError(t, p.Validate())

	bad := tieredPrice(ModelVolume)
	bad.Tiers[1].UpTo = upTo("5")
	require.Error(t, bad.Validate())

	unboundedFirst := tieredPrice(ModelGraduated)
	unboundedFirst.Tiers[0].UpTo = nil
	require.Error(t, unboundedFirst.Validate())

	var many Price
	many.Model = ModelGraduated
	for i := 0; i <= MaxTiers; i++ {
		many.Tiers = append(many.Tiers, Tier{UpTo: nil})
	}
	require.ErrorIs(t, many.Validate(), ErrTooManyTiers)
}
