// Package billing holds the shared document model and the monetary
// calculation engines used by invoices, credit notes, and quotes.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/pricing"
)

// DocumentKind discriminates the three document types sharing the engine.
type DocumentKind string

const (
	KindInvoice    DocumentKind = "INVOICE"
	KindCreditNote DocumentKind = "CREDIT_NOTE"
	KindQuote      DocumentKind = "QUOTE"
)

// DocumentStatus is the lifecycle state shared by all document kinds.
type DocumentStatus string

const (
	StatusDraft  DocumentStatus = "DRAFT"
	StatusOpen   DocumentStatus = "OPEN"
	StatusPaid   DocumentStatus = "PAID"
	StatusVoided DocumentStatus = "VOIDED"
)

// TaxBehavior selects whether unit prices already contain tax.
type TaxBehavior string

const (
	// TaxExclusive adds tax on top of the taxable base.
	TaxExclusive TaxBehavior = "EXCLUSIVE"
	// TaxInclusive back-calculates tax out of the taxable base.
	TaxInclusive TaxBehavior = "INCLUSIVE"
)

// AllocationSource tags where a coupon or tax application originated.
type AllocationSource string

const (
	SourceLine     AllocationSource = "LINE"
	SourceDocument AllocationSource = "DOCUMENT"
	SourceShipping AllocationSource = "SHIPPING"
)

// Structural limits enforced before recalculation.
const (
	MaxCouponsPerTarget  = 10
	MaxTaxRatesPerTarget = 5
)

// CouponKind separates the two mutually exclusive coupon shapes.
type CouponKind string

const (
	CouponFixed      CouponKind = "FIXED"
	CouponPercentage CouponKind = "PERCENTAGE"
)

// Coupon is a fixed-amount or percentage discount.
type Coupon struct {
	ID        int64      `json:"id"`
	AccountID int64      `json:"account_id"`
	Name      string     `json:"name"`
	Kind      CouponKind `json:"kind"`
	// Amount applies to CouponFixed; its currency must match the document.
	Amount money.Money `json:"amount"`
	// Percentage applies to CouponPercentage, expressed as 0–100.
	Percentage decimal.Decimal `json:"percentage"`
}

// TaxRate is a percentage tax, expressed as 0–100. Non-positive rates always
// compute to zero tax.
type TaxRate struct {
	ID         int64           `json:"id"`
	AccountID  int64           `json:"account_id"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

// DiscountAllocation records one coupon application against one base.
type DiscountAllocation struct {
	Coupon Coupon           `json:"coupon"`
	Source AllocationSource `json:"source"`
	Amount money.Money      `json:"amount"`
}

// TaxAllocation records one tax rate application against one base.
type TaxAllocation struct {
	Rate   TaxRate          `json:"rate"`
	Source AllocationSource `json:"source"`
	Amount money.Money      `json:"amount"`
}

// DocumentLine is a billable row. Either Quantity+UnitAmount or Price drives
// the gross amount; amount-based lines leave Quantity nil.
type DocumentLine struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Position    int    `json:"position"`

	Quantity   *decimal.Decimal `json:"quantity,omitempty"`
	UnitAmount money.Money      `json:"unit_amount"`
	Price      *pricing.Price   `json:"price,omitempty"`

	// Coupons and TaxRates owned by the line, ordered by position. A line
	// with no tax rates inherits the document's rates.
	Coupons  []Coupon  `json:"coupons,omitempty"`
	TaxRates []TaxRate `json:"tax_rates,omitempty"`

	// Credit tracking, invoices only.
	TotalCreditAmount money.Money     `json:"total_credit_amount"`
	CreditQuantity    decimal.Decimal `json:"credit_quantity"`

	// SourceLineID links a credit note line to the invoice line it credits.
	SourceLineID *int64 `json:"source_line_id,omitempty"`

	// Computed by Recalculate.
	Amount                  money.Money     `json:"amount"`
	TotalDiscountAmount     money.Money     `json:"total_discount_amount"`
	TotalTaxableAmount      money.Money     `json:"total_taxable_amount"`
	TotalExcludingTaxAmount money.Money     `json:"total_excluding_tax_amount"`
	TotalTaxAmount          money.Money     `json:"total_tax_amount"`
	TotalAmount             money.Money     `json:"total_amount"`
	OutstandingAmount       money.Money     `json:"outstanding_amount"`
	OutstandingQuantity     decimal.Decimal `json:"outstanding_quantity"`

	DiscountAllocations []DiscountAllocation `json:"discount_allocations,omitempty"`
	TaxAllocations      []TaxAllocation      `json:"tax_allocations,omitempty"`
}

// Shipping is the invoice-only shipping charge with its own tax treatment.
type Shipping struct {
	Description string      `json:"description"`
	Amount      money.Money `json:"amount"`

	TotalExcludingTaxAmount money.Money     `json:"total_excluding_tax_amount"`
	TotalTaxAmount          money.Money     `json:"total_tax_amount"`
	TotalAmount             money.Money     `json:"total_amount"`
	TaxAllocations          []TaxAllocation `json:"tax_allocations,omitempty"`
}

// Document generalizes Invoice, CreditNote, and Quote for the calculator.
type Document struct {
	ID        int64          `json:"id"`
	AccountID int64          `json:"account_id"`
	Kind      DocumentKind   `json:"kind"`
	Status    DocumentStatus `json:"status"`
	Currency  string         `json:"currency"`

	CustomerID         int64   `json:"customer_id"`
	CustomerSnapshotID *int64  `json:"customer_snapshot_id,omitempty"`
	NumberingSystemID  *int64  `json:"numbering_system_id,omitempty"`
	Number             *string `json:"number,omitempty"`

	// Revision chain, invoices only. The root is the first revision; every
	// later revision points back to it and to its immediate predecessor.
	RootInvoiceID      *int64 `json:"root_invoice_id,omitempty"`
	PreviousRevisionID *int64 `json:"previous_revision_id,omitempty"`

	// InvoiceID links a credit note to the invoice it credits.
	InvoiceID *int64 `json:"invoice_id,omitempty"`

	// PDFFileRef is an opaque reference to the rendered document.
	PDFFileRef *string `json:"pdf_file_ref,omitempty"`

	IssuedAt *time.Time `json:"issued_at,omitempty"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
	VoidedAt *time.Time `json:"voided_at,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`

	Lines    []*DocumentLine `json:"lines"`
	Coupons  []Coupon        `json:"coupons,omitempty"`
	TaxRates []TaxRate       `json:"tax_rates,omitempty"`
	Shipping *Shipping       `json:"shipping,omitempty"`

	// Computed by Recalculate.
	SubtotalAmount          money.Money `json:"subtotal_amount"`
	TotalDiscountAmount     money.Money `json:"total_discount_amount"`
	TotalExcludingTaxAmount money.Money `json:"total_excluding_tax_amount"`
	TotalTaxAmount          money.Money `json:"total_tax_amount"`
	TotalAmount             money.Money `json:"total_amount"`

	// Invoice-only aggregates.
	TotalCreditAmount money.Money `json:"total_credit_amount"`
	TotalPaidAmount   money.Money `json:"total_paid_amount"`
	OutstandingAmount money.Money `json:"outstanding_amount"`

	DiscountAllocations []DiscountAllocation `json:"discount_allocations,omitempty"`
	TaxAllocations      []TaxAllocation      `json:"tax_allocations,omitempty"`
}

// Capabilities parametrizes the shared calculator per document kind.
type Capabilities struct {
	HasShipping          bool
	HasCredit            bool
	HasDocumentDiscounts bool
}

// CapabilitiesFor returns the capability set of a document kind.
func CapabilitiesFor(kind DocumentKind) Capabilities {
	switch kind {
	case KindInvoice:
		return Capabilities{HasShipping: true, HasCredit: true, HasDocumentDiscounts: true}
	case KindCreditNote:
		return Capabilities{HasDocumentDiscounts: false}
	default:
		return Capabilities{HasDocumentDiscounts: true}
	}
}

// IsDraft reports whether the document can still be mutated.
func (d *Document) IsDraft() bool { return d.Status == StatusDraft }

// EffectiveTaxRates returns the line's own rates when present, else the
// document's rates. The two sets are never combined.
func (l *DocumentLine) EffectiveTaxRates(doc *Document) ([]TaxRate, AllocationSource) {
	if len(l.TaxRates) > 0 {
		return l.TaxRates, SourceLine
	}
	return doc.TaxRates, SourceDocument
}

// HasOwnCoupons reports whether document-level coupons skip this line.
func (l *DocumentLine) HasOwnCoupons() bool { return len(l.Coupons) > 0 }
