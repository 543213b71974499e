package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/pricing"
	"github.com/billhaven/billhaven/internal/shared"
)

// BehaviorResolver maps a document currency to its tax behavior.
type BehaviorResolver func(currency string) TaxBehavior

// Editor implements the draft mutations shared by invoices, credit notes,
// and quotes. Every mutation locks the document row, applies the change,
// recalculates inline, and persists; the whole sequence shares one
// transaction so overflow or validation failures roll back cleanly.
type Editor struct {
	repo     Repository
	kind     DocumentKind
	behavior BehaviorResolver
}

// NewEditor constructs an Editor for one document kind.
func NewEditor(repo Repository, kind DocumentKind, behavior BehaviorResolver) *Editor {
	return &Editor{repo: repo, kind: kind, behavior: behavior}
}

// LineInput carries a line create or update. Exactly one of Quantity+
// UnitAmount, a bare UnitAmount (amount-based), or Price drives the amount.
type LineInput struct {
	Description string           `json:"description" validate:"max=500"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitAmount  *money.Money     `json:"unit_amount,omitempty"`
	Price       *pricing.Price   `json:"price,omitempty"`
	CouponIDs   []int64          `json:"coupon_ids,omitempty"`
	TaxRateIDs  []int64          `json:"tax_rate_ids,omitempty"`

	// SourceLineID links a credit note line to the invoice line it credits.
	SourceLineID *int64 `json:"source_line_id,omitempty"`
}

// Mutate runs fn against the locked draft, recalculates, and saves.
func (e *Editor) Mutate(ctx context.Context, accountID, id int64, fn func(ctx context.Context, r Repository, doc *Document) error) (*Document, error) {
	var out *Document
	err := e.repo.InTx(ctx, func(ctx context.Context, r Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, e.kind, true)
		if err != nil {
			return err
		}
		if !doc.IsDraft() {
			return shared.ErrNotEditable
		}
		if err := fn(ctx, r, doc); err != nil {
			return err
		}
		if err := Recalculate(doc, e.behavior(doc.Currency)); err != nil {
			return err
		}
		if err := r.SaveDocument(ctx, doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	return out, err
}

// AddLine appends a line to the draft.
func (e *Editor) AddLine(ctx context.Context, accountID, id int64, in LineInput) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		line, err := e.BuildLine(ctx, r, doc, in)
		if err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, line)
		return nil
	})
}

// UpdateLine replaces the identified line's inputs.
func (e *Editor) UpdateLine(ctx context.Context, accountID, id, lineID int64, in LineInput) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		for i, l := range doc.Lines {
			if l.ID != lineID {
				continue
			}
			line, err := e.BuildLine(ctx, r, doc, in)
			if err != nil {
				return err
			}
			line.ID = l.ID
			line.SourceLineID = l.SourceLineID
			line.TotalCreditAmount = l.TotalCreditAmount
			line.CreditQuantity = l.CreditQuantity
			doc.Lines[i] = line
			return nil
		}
		return fmt.Errorf("line %d: %w", lineID, shared.ErrNotFound)
	})
}

// DeleteLine removes the identified line.
func (e *Editor) DeleteLine(ctx context.Context, accountID, id, lineID int64) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		for i, l := range doc.Lines {
			if l.ID == lineID {
				doc.Lines = append(doc.Lines[:i], doc.Lines[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("line %d: %w", lineID, shared.ErrNotFound)
	})
}

// AddCoupon attaches a catalog coupon at document level.
func (e *Editor) AddCoupon(ctx context.Context, accountID, id, couponID int64) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		if !CapabilitiesFor(doc.Kind).HasDocumentDiscounts {
			return fmt.Errorf("%w: %s documents have no document coupons", shared.ErrValidation, doc.Kind)
		}
		coupon, err := e.resolveCoupon(ctx, r, doc, couponID)
		if err != nil {
			return err
		}
		if len(doc.Coupons)+1 > MaxCouponsPerTarget {
			return fmt.Errorf("%w: at most %d coupons per document", shared.ErrValidation, MaxCouponsPerTarget)
		}
		doc.Coupons = append(doc.Coupons, coupon)
		return nil
	})
}

// RemoveCoupon detaches a document-level coupon.
func (e *Editor) RemoveCoupon(ctx context.Context, accountID, id, couponID int64) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		for i, c := range doc.Coupons {
			if c.ID == couponID {
				doc.Coupons = append(doc.Coupons[:i], doc.Coupons[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("coupon %d: %w", couponID, shared.ErrNotFound)
	})
}

// AddTaxRate attaches a catalog tax rate at document level.
func (e *Editor) AddTaxRate(ctx context.Context, accountID, id, rateID int64) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		rate, err := r.GetTaxRate(ctx, accountID, rateID)
		if err != nil {
			return err
		}
		if len(doc.TaxRates)+1 > MaxTaxRatesPerTarget {
			return fmt.Errorf("%w: at most %d tax rates per document", shared.ErrValidation, MaxTaxRatesPerTarget)
		}
		doc.TaxRates = append(doc.TaxRates, rate)
		return nil
	})
}

// RemoveTaxRate detaches a document-level tax rate.
func (e *Editor) RemoveTaxRate(ctx context.Context, accountID, id, rateID int64) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		for i, t := range doc.TaxRates {
			if t.ID == rateID {
				doc.TaxRates = append(doc.TaxRates[:i], doc.TaxRates[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("tax rate %d: %w", rateID, shared.ErrNotFound)
	})
}

// SetShipping sets or clears the shipping charge. Invoices only.
func (e *Editor) SetShipping(ctx context.Context, accountID, id int64, shipping *Shipping) (*Document, error) {
	return e.Mutate(ctx, accountID, id, func(ctx context.Context, r Repository, doc *Document) error {
		if !CapabilitiesFor(doc.Kind).HasShipping {
			return fmt.Errorf("%w: %s documents have no shipping", shared.ErrValidation, doc.Kind)
		}
		if shipping != nil && shipping.Amount.Currency != doc.Currency {
			return shared.ErrCurrencyMismatch
		}
		doc.Shipping = shipping
		return nil
	})
}

// BuildLine validates a LineInput against the document and resolves its
// catalog references.
func (e *Editor) BuildLine(ctx context.Context, r Repository, doc *Document, in LineInput) (*DocumentLine, error) {
	if in.UnitAmount != nil && in.Price != nil {
		return nil, fmt.Errorf("%w: unit_amount and price are mutually exclusive", shared.ErrValidation)
	}
	if in.UnitAmount == nil && in.Price == nil {
		return nil, fmt.Errorf("%w: a line needs a unit_amount or a price", shared.ErrValidation)
	}
	if in.Quantity != nil && in.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity must not be negative", shared.ErrValidation)
	}
	if len(in.CouponIDs) > MaxCouponsPerTarget {
		return nil, fmt.Errorf("%w: at most %d coupons per line", shared.ErrValidation, MaxCouponsPerTarget)
	}
	if len(in.TaxRateIDs) > MaxTaxRatesPerTarget {
		return nil, fmt.Errorf("%w: at most %d tax rates per line", shared.ErrValidation, MaxTaxRatesPerTarget)
	}

	line := &DocumentLine{
		Description:       in.Description,
		Quantity:          in.Quantity,
		UnitAmount:        money.Zero(doc.Currency),
		TotalCreditAmount: money.Zero(doc.Currency),
		SourceLineID:      in.SourceLineID,
	}
	if in.UnitAmount != nil {
		if in.UnitAmount.Currency != doc.Currency {
			return nil, shared.ErrCurrencyMismatch
		}
		line.UnitAmount = *in.UnitAmount
	}
	if in.Price != nil {
		if in.Price.Currency != doc.Currency {
			return nil, shared.ErrCurrencyMismatch
		}
		if err := in.Price.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
		}
		line.Price = in.Price
	}

	for _, cid := range in.CouponIDs {
		coupon, err := e.resolveCoupon(ctx, r, doc, cid)
		if err != nil {
			return nil, err
		}
		line.Coupons = append(line.Coupons, coupon)
	}
	for _, tid := range in.TaxRateIDs {
		rate, err := r.GetTaxRate(ctx, doc.AccountID, tid)
		if err != nil {
			return nil, err
		}
		line.TaxRates = append(line.TaxRates, rate)
	}
	return line, nil
}

func (e *Editor) resolveCoupon(ctx context.Context, r Repository, doc *Document, couponID int64) (Coupon, error) {
	coupon, err := r.GetCoupon(ctx, doc.AccountID, couponID)
	if err != nil {
		return Coupon{}, err
	}
	if coupon.Kind == CouponFixed && coupon.Amount.Currency != doc.Currency {
		return Coupon{}, shared.ErrCurrencyMismatch
	}
	return coupon, nil
}
