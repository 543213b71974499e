// Package pricing resolves unit and total amounts for quantity-based prices.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/money"
)

// Model selects how tiers are interpreted.
type Model string

const (
	// ModelFlat charges quantity × unit amount with no tiers.
	ModelFlat Model = "FLAT"
	// ModelVolume charges the whole quantity at the single tier containing it.
	ModelVolume Model = "VOLUME"
	// ModelGraduated consumes the quantity tier by tier, accumulating each
	// tier's portion at that tier's unit amount.
	ModelGraduated Model = "GRADUATED"
)

// MaxTiers bounds how many tiers a price may carry.
const MaxTiers = 20

var (
	ErrNoTierForQuantity = errors.New("pricing: no tier covers quantity")
	ErrTooManyTiers      = errors.New("pricing: tier count exceeds maximum")
)

// Tier is one quantity band. UpTo nil means unbounded (the last tier).
type Tier struct {
	UpTo       *decimal.Decimal `json:"up_to,omitempty"`
	UnitAmount money.Money      `json:"unit_amount"`
	FlatAmount money.Money      `json:"flat_amount"`
}

// Price is a reusable pricing scheme attached to document lines in place of a
// manual unit amount.
type Price struct {
	ID       int64  `json:"id,omitempty"`
	Currency string `json:"currency"`
	Model    Model  `json:"model"`
	// UnitAmount applies to ModelFlat only.
	UnitAmount money.Money `json:"unit_amount"`
	// Tiers apply to ModelVolume and ModelGraduated, ordered by UpTo
	// ascending with the unbounded tier last.
	Tiers []Tier `json:"tiers,omitempty"`
}

// Validate checks structural rules before a price is stored or used.
func (p Price) Validate() error {
	if len(p.Tiers) > MaxTiers {
		return ErrTooManyTiers
	}
	if p.Model == ModelFlat {
		return nil
	}
	if len(p.Tiers) == 0 {
		return fmt.Errorf("pricing: %s price requires tiers", p.Model)
	}
	var prev *decimal.Decimal
	for i, t := range p.Tiers {
		if t.UpTo == nil {
			if i != len(p.Tiers)-1 {
				return fmt.Errorf("pricing: unbounded tier must be last")
			}
			continue
		}
		if prev != nil && t.UpTo.Cmp(*prev) <= 0 {
			return fmt.Errorf("pricing: tier bounds must increase")
		}
		up := *t.UpTo
		prev = &up
	}
	return nil
}

// CalculateAmount resolves the total amount for a quantity.
func (p Price) CalculateAmount(quantity decimal.Decimal) (money.Money, error) {
	switch p.Model {
	case ModelFlat:
		return p.UnitAmount.MulDecimal(quantity), nil
	case ModelVolume:
		tier, err := p.volumeTier(quantity)
		if err != nil {
			return money.Zero(p.Currency), err
		}
		return tier.FlatAmount.Add(tier.UnitAmount.MulDecimal(quantity)), nil
	case ModelGraduated:
		return p.graduatedAmount(quantity)
	default:
		return money.Zero(p.Currency), fmt.Errorf("pricing: unknown model %q", p.Model)
	}
}

// CalculateUnitAmount resolves the effective per-unit amount for a quantity.
func (p Price) CalculateUnitAmount(quantity decimal.Decimal) (money.Money, error) {
	if p.Model == ModelFlat {
		return p.UnitAmount, nil
	}
	if p.Model == ModelVolume {
		tier, err := p.volumeTier(quantity)
		if err != nil {
			return money.Zero(p.Currency), err
		}
		return tier.UnitAmount, nil
	}
	total, err := p.CalculateAmount(quantity)
	if err != nil {
		return money.Zero(p.Currency), err
	}
	if quantity.IsZero() {
		return money.Zero(p.Currency), nil
	}
	return total.DivDecimal(quantity), nil
}

// volumeTier picks the single tier whose range contains quantity.
func (p Price) volumeTier(quantity decimal.Decimal) (Tier, error) {
	for _, t := range p.Tiers {
		if t.UpTo == nil || quantity.Cmp(*t.UpTo) <= 0 {
			return t, nil
		}
	}
	return Tier{}, ErrNoTierForQuantity
}

// graduatedAmount walks tiers in order, charging each band's portion of the
// quantity at that band's unit amount until the quantity is consumed.
func (p Price) graduatedAmount(quantity decimal.Decimal) (money.Money, error) {
	total := money.Zero(p.Currency)
	consumed := decimal.Zero
	for _, t := range p.Tiers {
		if quantity.Cmp(consumed) <= 0 {
			break
		}
		bandEnd := quantity
		if t.UpTo != nil && t.UpTo.Cmp(quantity) < 0 {
			bandEnd = *t.UpTo
		}
		portion := bandEnd.Sub(consumed)
		if portion.IsPositive() {
			total = total.Add(t.FlatAmount).Add(t.UnitAmount.MulDecimal(portion))
			consumed = bandEnd
		}
	}
	if quantity.Cmp(consumed) > 0 {
		return money.Zero(p.Currency), ErrNoTierForQuantity
	}
	return total, nil
}
