package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/pricing"
)

func dq(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func qtyLine(qty, unit string) *DocumentLine {
	return &DocumentLine{Quantity: dq(qty), UnitAmount: usd(unit)}
}

func amountLine(amount string) *DocumentLine {
	return &DocumentLine{UnitAmount: usd(amount)}
}

func newDoc(kind DocumentKind, lines ...*DocumentLine) *Document {
	return &Document{
		ID:       1,
		Kind:     kind,
		Status:   StatusDraft,
		Currency: "USD",
		Lines:    lines,
	}
}

func TestRecalculateLineCouponAndExclusiveTax(t *testing.T) {
	line := qtyLine("1", "100.00")
	line.Coupons = []Coupon{fixedCoupon("10.00")}
	line.TaxRates = []TaxRate{rate("vat", "20")}
	doc := newDoc(KindInvoice, line)

	require.NoError(t, Recalculate(doc, TaxExclusive))

	require.Equal(t, "100.00 USD", line.Amount.String())
	require.Equal(t, "10.00 USD", line.TotalDiscountAmount.String())
	require.Equal(t, "90.00 USD", line.TotalTaxableAmount.String())
	require.Equal(t, "18.00 USD", line.TotalTaxAmount.String())
	require.Equal(t, "108.00 USD", line.TotalAmount.String())

	require.Equal(t, "100.00 USD", doc.SubtotalAmount.String())
	require.Equal(t, "10.00 USD", doc.TotalDiscountAmount.String())
	require.Equal(t, "90.00 USD", doc.TotalExcludingTaxAmount.String())
	require.Equal(t, "18.00 USD", doc.TotalTaxAmount.String())
	require.Equal(t, "108.00 USD", doc.TotalAmount.String())
	require.Equal(t, "108.00 USD", doc.OutstandingAmount.String())

	require.Len(t, line.DiscountAllocations, 1)
	require.Equal(t, SourceLine, line.DiscountAllocations[0].Source)
	require.Len(t, line.TaxAllocations, 1)
	require.Equal(t, SourceLine, line.TaxAllocations[0].Source)
}

func TestRecalculateInclusiveTax(t *testing.T) {
	line := qtyLine("1", "100.00")
	line.TaxRates = []TaxRate{rate("vat", "20")}
	doc := newDoc(KindInvoice, line)

	require.NoError(t, Recalculate(doc, TaxInclusive))

	require.Equal(t, "83.33 USD", line.TotalExcludingTaxAmount.String())
	require.Equal(t, "16.67 USD", line.TotalTaxAmount.String())
	require.Equal(t, "100.00 USD", line.TotalAmount.String())
	require.Equal(t, "100.00 USD", doc.TotalAmount.String())
}

func TestDocumentCouponZeroesEveryLine(t *testing.T) {
	a := amountLine("60.00")
	b := amountLine("40.00")
	doc := newDoc(KindInvoice, a, b)
	doc.Coupons = []Coupon{fixedCoupon("100.00")}

	require.NoError(t, Recalculate(doc, TaxExclusive))

	require.Equal(t, "60.00 USD", a.DiscountAllocations[0].Amount.String())
	require.Equal(t, "40.00 USD", b.DiscountAllocations[0].Amount.String())
	require.Equal(t, SourceDocument, a.DiscountAllocations[0].Source)
	require.True(t, a.TotalTaxableAmount.IsZero())
	require.True(t, b.TotalTaxableAmount.IsZero())

	require.Equal(t, "100.00 USD", doc.SubtotalAmount.String())
	require.Equal(t, "100.00 USD", doc.TotalDiscountAmount.String())
	require.True(t, doc.TotalAmount.IsZero())
	require.Len(t, doc.DiscountAllocations, 1)
	require.Equal(t, "100.00 USD", doc.DiscountAllocations[0].Amount.String())
}

func TestDocumentCouponSkipsLinesWithOwnCoupons(t *testing.T) {
	a := amountLine("50.00")
	a.Coupons = []Coupon{percentCoupon("10")}
	b := amountLine("50.00")
	doc := newDoc(KindInvoice, a, b)
	doc.Coupons = []Coupon{fixedCoupon("10.00")}

	require.NoError(t, Recalculate(doc, TaxExclusive))

	// Line a keeps only its own 10% discount.
	require.Equal(t, "5.00 USD", a.TotalDiscountAmount.String())
	require.Len(t, a.DiscountAllocations, 1)
	// Line b absorbs the whole document coupon.
	require.Equal(t, "10.00 USD", b.TotalDiscountAmount.String())
	require.Equal(t, SourceDocument, b.DiscountAllocations[0].Source)

	require.Equal(t, "15.00 USD", doc.TotalDiscountAmount.String())
	require.Equal(t, "85.00 USD", doc.TotalAmount.String())
}

func TestDocumentTaxPoolsLinesWithoutOwnRates(t *testing.T) {
	a := amountLine("100.00")
	a.TaxRates = []TaxRate{rate("reduced", "10")}
	b := amountLine("50.00")
	doc := newDoc(KindInvoice, a, b)
	doc.TaxRates = []TaxRate{rate("vat", "20")}

	require.NoError(t, Recalculate(doc, TaxExclusive))

	require.Equal(t, "10.00 USD", a.TotalTaxAmount.String())
	require.True(t, b.TotalTaxAmount.IsZero())

	// Only line b feeds the document-level pool.
	require.Len(t, doc.TaxAllocations, 1)
	require.Equal(t, SourceDocument, doc.TaxAllocations[0].Source)
	require.Equal(t, "10.00 USD", doc.TaxAllocations[0].Amount.String())

	require.Equal(t, "150.00 USD", doc.TotalExcludingTaxAmount.String())
	require.Equal(t, "20.00 USD", doc.TotalTaxAmount.String())
	require.Equal(t, "170.00 USD", doc.TotalAmount.String())
}

func TestShippingTaxedWithDocumentRates(t *testing.T) {
	line := amountLine("100.00")
	doc := newDoc(KindInvoice, line)
	doc.TaxRates = []TaxRate{rate("vat", "20")}
	doc.Shipping = &Shipping{Description: "standard", Amount: usd("10.00")}

	require.NoError(t, Recalculate(doc, TaxExclusive))

	require.Equal(t, "10.00 USD", doc.Shipping.TotalExcludingTaxAmount.String())
	require.Equal(t, "2.00 USD", doc.Shipping.TotalTaxAmount.String())
	require.Equal(t, "12.00 USD", doc.Shipping.TotalAmount.String())
	require.Len(t, doc.Shipping.TaxAllocations, 1)
	require.Equal(t, SourceShipping, doc.Shipping.TaxAllocations[0].Source)

	require.Equal(t, "110.00 USD", doc.TotalExcludingTaxAmount.String())
	require.Equal(t, "22.00 USD", doc.TotalTaxAmount.String())
	require.Equal(t, "132.00 USD", doc.TotalAmount.String())
}

func TestCreditNoteIgnoresShippingAndDocumentCoupons(t *testing.T) {
	doc := newDoc(KindCreditNote, amountLine("60.00"), amountLine("40.00"))
	doc.Coupons = []Coupon{fixedCoupon("100.00")}
	doc.Shipping = &Shipping{Amount: usd("10.00")}

	require.NoError(t, Recalculate(doc, TaxExclusive))

	require.Empty(t, doc.DiscountAllocations)
	require.True(t, doc.TotalDiscountAmount.IsZero())
	require.Equal(t, "100.00 USD", doc.TotalAmount.String())
	require.True(t, doc.OutstandingAmount.IsZero())
}

func TestOutstandingAfterPaymentsAndCredits(t *testing.T) {
	line := qtyLine("2", "50.00")
	line.TotalCreditAmount = usd("30.00")
	line.CreditQuantity = decimal.RequireFromString("1")
	doc := newDoc(KindInvoice, line)
	doc.TotalPaidAmount = usd("20.00")

	require.NoError(t, Recalculate(doc, TaxExclusive))

	require.Equal(t, "100.00 USD", line.TotalAmount.String())
	require.Equal(t, "70.00 USD", line.OutstandingAmount.String())
	require.Equal(t, "1", line.OutstandingQuantity.String())

	require.Equal(t, "30.00 USD", doc.TotalCreditAmount.String())
	require.Equal(t, "50.00 USD", doc.OutstandingAmount.String())
}

func TestOutstandingNeverNegative(t *testing.T) {
	line := amountLine("50.00")
	line.TotalCreditAmount = usd("50.00")
	doc := newDoc(KindInvoice, line)
	doc.TotalPaidAmount = usd("80.00")

	require.NoError(t, Recalculate(doc, TaxExclusive))
	require.True(t, line.OutstandingAmount.IsZero())
	require.True(t, doc.OutstandingAmount.IsZero())
}

func TestTieredPriceLine(t *testing.T) {
	line := &DocumentLine{
		Quantity: dq("15"),
		Price: &pricing.Price{
			Currency: "USD",
			Model:    pricing.ModelGraduated,
			Tiers: []pricing.Tier{
				{UpTo: dq("10"), UnitAmount: usd("5.00"), FlatAmount: money.Zero("USD")},
				{UpTo: nil, UnitAmount: usd("4.00"), FlatAmount: money.Zero("USD")},
			},
		},
	}
	doc := newDoc(KindInvoice, line)

	require.NoError(t, Recalculate(doc, TaxExclusive))
	require.Equal(t, "70.00 USD", line.Amount.String())
	require.Equal(t, "70.00 USD", doc.TotalAmount.String())
}

func TestRecalculateIsIdempotent(t *testing.T) {
	a := amountLine("60.00")
	a.TaxRates = []TaxRate{rate("reduced", "10")}
	b := amountLine("40.00")
	doc := newDoc(KindInvoice, a, b)
	doc.Coupons = []Coupon{percentCoupon("25")}
	doc.TaxRates = []TaxRate{rate("vat", "20")}
	doc.Shipping = &Shipping{Amount: usd("5.00")}

	require.NoError(t, Recalculate(doc, TaxExclusive))
	first := doc.TotalAmount.String()
	firstDiscounts := len(doc.DiscountAllocations)
	firstLineAllocs := len(a.DiscountAllocations)

	require.NoError(t, Recalculate(doc, TaxExclusive))
	require.Equal(t, first, doc.TotalAmount.String())
	require.Equal(t, firstDiscounts, len(doc.DiscountAllocations))
	require.Equal(t, firstLineAllocs, len(a.DiscountAllocations))
}

func TestRecalculateOverflowAborts(t *testing.T) {
	line := qtyLine("2", "99999999999.99")
	doc := newDoc(KindInvoice, line)

	err := Recalculate(doc, TaxExclusive)
	require.ErrorIs(t, err, money.ErrOverflow)
}

func TestDocumentCouponReducesLineOutstanding(t *testing.T) {
	line := amountLine("100.00")
	doc := newDoc(KindInvoice, line)
	doc.Coupons = []Coupon{fixedCoupon("40.00")}

	require.NoError(t, Recalculate(doc, TaxExclusive))

	require.Equal(t, "60.00 USD", line.TotalAmount.String())
	require.Equal(t, "60.00 USD", line.OutstandingAmount.String())
	require.Equal(t, "60.00 USD", doc.OutstandingAmount.String())

	line.TotalCreditAmount = usd("60.00")
	require.NoError(t, Recalculate(doc, TaxExclusive))
	require.True(t, line.OutstandingAmount.IsZero())
	require.True(t, doc.OutstandingAmount.IsZero())
}
