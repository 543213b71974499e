package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsToMinorUnits(t *testing.T) {
	m := New(decimal.RequireFromString("10.005"), "EUR")
	require.Equal(t, "10.01 EUR", m.String())

	m = New(decimal.RequireFromString("10.004"), "EUR")
	require.Equal(t, "10.00 EUR", m.String())
}

func TestZero(t *testing.T) {
	z := Zero("USD")
	require.True(t, z.IsZero())
	require.Equal(t, "USD", z.Currency)
}

func TestArithmetic(t *testing.T) {
	a := MustFromString("10.50", "USD")
	b := MustFromString("2.25", "USD")

	require.Equal(t, "12.75 USD", a.Add(b).String())
	require.Equal(t, "8.25 USD", a.Sub(b).String())
	require.Equal(t, "31.50 USD", a.MulInt(3).String())
	require.Equal(t, "-10.50 USD", a.Neg().String())
}

func TestMulDecimalRounds(t *testing.T) {
	a := MustFromString("123.45", "USD")
	ratio := decimal.RequireFromString("0.0725")
	require.Equal(t, "8.95 USD", a.MulDecimal(ratio).String())
}

func TestCurrencyMismatchPanics(t *testing.T) {
	a := MustFromString("1.00", "USD")
	b := MustFromString("1.00", "EUR")
	require.Panics(t, func() { a.Add(b) })
	require.Panics(t, func() { a.Sub(b) })
	require.Panics(t, func() { a.Cmp(b) })
}

func TestMinMax(t *testing.T) {
	a := MustFromString("1.00", "USD")
	b := MustFromString("2.00", "USD")
	require.Equal(t, a, Min(a, b))
	require.Equal(t, b, Max(a, b))
}

func TestClampWithinBounds(t *testing.T) {
	m := MustFromString("99999999999.99", "USD")
	out, err := Clamp(m)
	require.NoError(t, err)
	require.True(t, out.Equal(m))
}

func TestClampOverflow(t *testing.T) {
	m := New(MaxAmount.Add(decimal.NewFromInt(1)), "USD")
	out, err := Clamp(m)
	require.ErrorIs(t, err, ErrOverflow)
	require.True(t, out.Amount.Equal(MaxAmount))

	neg := New(MaxAmount.Add(decimal.NewFromInt(1)).Neg(), "USD")
	out, err = Clamp(neg)
	require.ErrorIs(t, err, ErrOverflow)
	require.True(t, out.Amount.Equal(MaxAmount.Neg()))
}
