package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/money"
)

// clamper funnels every computed amount through the overflow clamp, keeping
// the first overflow it sees so the whole recalculation can be aborted.
type clamper struct {
	err error
}

func (c *clamper) clamp(m money.Money) money.Money {
	out, err := money.Clamp(m)
	if err != nil && c.err == nil {
		c.err = err
	}
	return out
}

// Recalculate recomputes every monetary field of the document from its lines,
// coupons, and tax rates. It is idempotent: all computed fields are derived
// fresh on each call, so repeated invocations without intervening mutations
// produce identical totals.
//
// Any amount exceeding the representable maximum aborts the recalculation
// with an error wrapping money.ErrOverflow; callers run Recalculate inside
// the mutation transaction so the triggering change rolls back with it.
func Recalculate(doc *Document, behavior TaxBehavior) error {
	caps := CapabilitiesFor(doc.Kind)
	cl := &clamper{}

	if doc.TotalPaidAmount.Currency == "" {
		doc.TotalPaidAmount = money.Zero(doc.Currency)
	}
	for _, line := range doc.Lines {
		recalculateLine(doc, line, behavior, cl)
	}

	doc.DiscountAllocations = nil
	if caps.HasDocumentDiscounts {
		applyDocumentCoupons(doc, behavior, cl)
	}

	// Pool the taxable remainder of lines that inherit the document's rates;
	// lines owning rates were already taxed at line level.
	pooled := money.Zero(doc.Currency)
	for _, line := range doc.Lines {
		if len(line.TaxRates) == 0 {
			pooled = pooled.Add(line.TotalTaxableAmount)
		}
	}
	docTax := CalculateTaxAmounts(pooled, behavior, doc.TaxRates)
	doc.TaxAllocations = nil
	for i, r := range doc.TaxRates {
		doc.TaxAllocations = append(doc.TaxAllocations, TaxAllocation{
			Rate:   r,
			Source: SourceDocument,
			Amount: cl.clamp(docTax.Amounts[i]),
		})
	}

	shippingExcl := money.Zero(doc.Currency)
	shippingTax := money.Zero(doc.Currency)
	if caps.HasShipping && doc.Shipping != nil {
		recalculateShipping(doc, doc.Shipping, behavior, cl)
		shippingExcl = doc.Shipping.TotalExcludingTaxAmount
		shippingTax = doc.Shipping.TotalTaxAmount
	}

	subtotal := money.Zero(doc.Currency)
	discountTotal := money.Zero(doc.Currency)
	lineExcl := money.Zero(doc.Currency)
	lineTax := money.Zero(doc.Currency)
	creditTotal := money.Zero(doc.Currency)
	for _, line := range doc.Lines {
		subtotal = subtotal.Add(line.Amount)
		discountTotal = discountTotal.Add(line.TotalDiscountAmount)
		if len(line.TaxRates) > 0 {
			lineExcl = lineExcl.Add(line.TotalExcludingTaxAmount)
			lineTax = lineTax.Add(line.TotalTaxAmount)
		}
		if caps.HasCredit {
			creditTotal = creditTotal.Add(line.TotalCreditAmount)
			// Line totals are final here, after document coupons.
			line.OutstandingAmount = money.Max(line.TotalAmount.Sub(line.TotalCreditAmount), money.Zero(doc.Currency))
			if line.Quantity != nil {
				q := line.Quantity.Sub(line.CreditQuantity)
				if q.IsNegative() {
					q = decimal.Zero
				}
				line.OutstandingQuantity = q
			}
		}
	}

	doc.SubtotalAmount = cl.clamp(subtotal)
	doc.TotalDiscountAmount = cl.clamp(discountTotal)
	doc.TotalExcludingTaxAmount = cl.clamp(lineExcl.Add(docTax.ExclusiveBase).Add(shippingExcl))
	doc.TotalTaxAmount = cl.clamp(lineTax.Add(docTax.Total).Add(shippingTax))
	doc.TotalAmount = cl.clamp(doc.TotalExcludingTaxAmount.Add(doc.TotalTaxAmount))

	if caps.HasCredit {
		doc.TotalCreditAmount = cl.clamp(creditTotal)
		outstanding := doc.TotalAmount.Sub(doc.TotalPaidAmount).Sub(doc.TotalCreditAmount)
		doc.OutstandingAmount = money.Max(outstanding, money.Zero(doc.Currency))
	} else {
		doc.TotalCreditAmount = money.Zero(doc.Currency)
		doc.OutstandingAmount = money.Zero(doc.Currency)
	}

	if cl.err != nil {
		return fmt.Errorf("billing: recalculate %s %d: %w", doc.Kind, doc.ID, cl.err)
	}
	return nil
}

// recalculateLine resolves the gross amount, applies line-owned coupons, and
// computes line-level tax when the line owns rates. Lines inheriting the
// document's rates are taxed at document level by Recalculate.
func recalculateLine(doc *Document, line *DocumentLine, behavior TaxBehavior, cl *clamper) {
	if line.TotalCreditAmount.Currency == "" {
		line.TotalCreditAmount = money.Zero(doc.Currency)
	}
	line.Amount = cl.clamp(grossAmount(doc, line))

	line.DiscountAllocations = nil
	discounts, discountTotal := ApplyCouponsSequentially(line.Coupons, line.Amount)
	for i, c := range line.Coupons {
		line.DiscountAllocations = append(line.DiscountAllocations, DiscountAllocation{
			Coupon: c,
			Source: SourceLine,
			Amount: discounts[i],
		})
	}
	line.TotalDiscountAmount = cl.clamp(discountTotal)
	line.TotalTaxableAmount = cl.clamp(line.Amount.Sub(line.TotalDiscountAmount))

	line.TaxAllocations = nil
	if len(line.TaxRates) > 0 {
		res := CalculateTaxAmounts(line.TotalTaxableAmount, behavior, line.TaxRates)
		for i, r := range line.TaxRates {
			line.TaxAllocations = append(line.TaxAllocations, TaxAllocation{
				Rate:   r,
				Source: SourceLine,
				Amount: cl.clamp(res.Amounts[i]),
			})
		}
		line.TotalExcludingTaxAmount = cl.clamp(res.ExclusiveBase)
		line.TotalTaxAmount = cl.clamp(res.Total)
		line.TotalAmount = cl.clamp(line.TotalExcludingTaxAmount.Add(line.TotalTaxAmount))
	} else {
		line.TotalExcludingTaxAmount = line.TotalTaxableAmount
		line.TotalTaxAmount = money.Zero(doc.Currency)
		line.TotalAmount = line.TotalTaxableAmount
	}
}

// grossAmount resolves quantity × unit price, a tiered price, or a bare
// amount for amount-based lines.
func grossAmount(doc *Document, line *DocumentLine) money.Money {
	if line.Price != nil {
		qty := decimal.NewFromInt(1)
		if line.Quantity != nil {
			qty = *line.Quantity
		}
		amt, err := line.Price.CalculateAmount(qty)
		if err != nil {
			return money.Zero(doc.Currency)
		}
		return amt
	}
	if line.Quantity != nil {
		return line.UnitAmount.MulDecimal(*line.Quantity)
	}
	return line.UnitAmount
}

// applyDocumentCoupons distributes each document-level coupon across the
// lines without their own coupons, proportionally to their remaining taxable
// bases, stopping once nothing is left to discount.
func applyDocumentCoupons(doc *Document, behavior TaxBehavior, cl *clamper) {
	for _, coupon := range doc.Coupons {
		var targets []*DocumentLine
		var bases []money.Money
		remaining := money.Zero(doc.Currency)
		for _, line := range doc.Lines {
			if line.HasOwnCoupons() {
				continue
			}
			targets = append(targets, line)
			bases = append(bases, line.TotalTaxableAmount)
			remaining = remaining.Add(line.TotalTaxableAmount)
		}
		if remaining.IsZero() {
			break
		}

		discount := coupon.CalculateAmount(remaining)
		if discount.IsZero() {
			doc.DiscountAllocations = append(doc.DiscountAllocations, DiscountAllocation{
				Coupon: coupon,
				Source: SourceDocument,
				Amount: money.Zero(doc.Currency),
			})
			continue
		}

		shares := money.AllocateProportionally(discount, bases)
		for i, line := range targets {
			if shares[i].IsZero() {
				continue
			}
			line.DiscountAllocations = append(line.DiscountAllocations, DiscountAllocation{
				Coupon: coupon,
				Source: SourceDocument,
				Amount: shares[i],
			})
			line.TotalDiscountAmount = cl.clamp(line.TotalDiscountAmount.Add(shares[i]))
			line.TotalTaxableAmount = cl.clamp(line.TotalTaxableAmount.Sub(shares[i]))
		}
		doc.DiscountAllocations = append(doc.DiscountAllocations, DiscountAllocation{
			Coupon: coupon,
			Source: SourceDocument,
			Amount: discount,
		})
	}

	// Lines owning tax rates recompute their tax against the reduced base.
	for _, line := range doc.Lines {
		if len(line.TaxRates) == 0 {
			line.TotalExcludingTaxAmount = line.TotalTaxableAmount
			line.TotalAmount = line.TotalTaxableAmount
			continue
		}
		res := CalculateTaxAmounts(line.TotalTaxableAmount, behavior, line.TaxRates)
		line.TaxAllocations = line.TaxAllocations[:0]
		for i, r := range line.TaxRates {
			line.TaxAllocations = append(line.TaxAllocations, TaxAllocation{
				Rate:   r,
				Source: SourceLine,
				Amount: cl.clamp(res.Amounts[i]),
			})
		}
		line.TotalExcludingTaxAmount = cl.clamp(res.ExclusiveBase)
		line.TotalTaxAmount = cl.clamp(res.Total)
		line.TotalAmount = cl.clamp(line.TotalExcludingTaxAmount.Add(line.TotalTaxAmount))
	}
}

// recalculateShipping taxes the shipping charge with the document's rates,
// independently of line calculations. Shipping is never discounted.
func recalculateShipping(doc *Document, s *Shipping, behavior TaxBehavior, cl *clamper) {
	res := CalculateTaxAmounts(s.Amount, behavior, doc.TaxRates)
	s.TaxAllocations = nil
	for i, r := range doc.TaxRates {
		s.TaxAllocations = append(s.TaxAllocations, TaxAllocation{
			Rate:   r,
			Source: SourceShipping,
			Amount: cl.clamp(res.Amounts[i]),
		})
	}
	s.TotalExcludingTaxAmount = cl.clamp(res.ExclusiveBase)
	s.TotalTaxAmount = cl.clamp(res.Total)
	s.TotalAmount = cl.clamp(s.TotalExcludingTaxAmount.Add(s.TotalTaxAmount))
}
