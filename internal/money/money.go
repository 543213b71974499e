// Package money provides the fixed-point monetary value used across billing.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the minor-unit precision applied to every stored amount.
const Precision = 2

// MaxAmount is the largest representable absolute amount. Computations that
// exceed it are clamped and reported through ErrOverflow.
var MaxAmount = decimal.RequireFromString("99999999999.99")

// ErrOverflow indicates an amount exceeded MaxAmount during a calculation.
var ErrOverflow = errors.New("money: amount overflow")

// Money is an immutable amount in a single currency. Arithmetic between two
// Money values requires matching currencies; mixing currencies is a
// programming error and panics.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money rounded to minor-unit precision.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount.Round(Precision), Currency: currency}
}

// FromString parses an amount string into Money.
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", amount, err)
	}
	return New(d, currency), nil
}

// MustFromString is FromString for test fixtures and constants.
func MustFromString(amount, currency string) Money {
	m, err := FromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns the zero value for a currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) mustMatch(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s vs %s", m.Currency, other.Currency))
	}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	m.mustMatch(other)
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	m.mustMatch(other)
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// MulInt returns m × qty rounded to minor-unit precision.
func (m Money) MulInt(qty int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(qty)).Round(Precision), Currency: m.Currency}
}

// MulDecimal returns m × ratio rounded to minor-unit precision.
func (m Money) MulDecimal(ratio decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(ratio).Round(Precision), Currency: m.Currency}
}

// DivDecimal returns m ÷ divisor rounded to minor-unit precision.
func (m Money) DivDecimal(divisor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Div(divisor).Round(Precision), Currency: m.Currency}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Cmp compares amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) int {
	m.mustMatch(other)
	return m.Amount.Cmp(other.Amount)
}

// Equal reports whether both currency and amount match.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Min returns the smaller of m and other.
func Min(m, other Money) Money {
	if m.Cmp(other) <= 0 {
		return m
	}
	return other
}

// Max returns the larger of m and other.
func Max(m, other Money) Money {
	if m.Cmp(other) >= 0 {
		return m
	}
	return other
}

// String renders "12.34 USD".
func (m Money) String() string {
	return m.Amount.StringFixed(Precision) + " " + m.Currency
}

// Clamp bounds the amount to ±MaxAmount. When clamping occurs the clamped
// value is returned together with ErrOverflow so the caller can abort the
// operation instead of persisting a silently truncated amount.
func Clamp(m Money) (Money, error) {
	if m.Amount.Abs().Cmp(MaxAmount) <= 0 {
		return m, nil
	}
	clamped := MaxAmount
	if m.Amount.IsNegative() {
		clamped = MaxAmount.Neg()
	}
	return Money{Amount: clamped, Currency: m.Currency}, ErrOverflow
}
