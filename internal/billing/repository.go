package billing

import (
	"context"
	"time"
)

// InvoiceHead points at the current revision of an invoice chain. The root
// invoice's id identifies the chain for its whole life.
type InvoiceHead struct {
	RootInvoiceID    int64 `json:"root_invoice_id"`
	CurrentInvoiceID int64 `json:"current_invoice_id"`
}

// Repository abstracts document persistence for the lifecycle services.
// InTx runs fn against a transaction-bound repository; mutations and their
// recalculation always share one transaction so an overflow or validation
// failure rolls back the triggering change.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error

	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, accountID, id int64, kind DocumentKind, forUpdate bool) (*Document, error)
	SaveDocument(ctx context.Context, doc *Document) error
	DeleteDocument(ctx context.Context, accountID, id int64) error
	ListDocuments(ctx context.Context, accountID int64, kind DocumentKind, status DocumentStatus, page, perPage int) ([]*Document, int, error)

	GetCoupon(ctx context.Context, accountID, id int64) (Coupon, error)
	GetTaxRate(ctx context.Context, accountID, id int64) (TaxRate, error)

	GetHead(ctx context.Context, rootID int64) (InvoiceHead, error)
	UpsertHead(ctx context.Context, rootID, currentID int64) error
	ListRevisions(ctx context.Context, accountID, rootID int64) ([]*Document, error)
	HasRevisionAfter(ctx context.Context, previousID int64) (bool, error)

	GetDraftCreditNoteForInvoice(ctx context.Context, accountID, invoiceID int64) (*Document, error)
	ListCreditNotesForInvoice(ctx context.Context, accountID, invoiceID int64) ([]*Document, error)

	CountInNumberingPeriod(ctx context.Context, accountID, systemID int64, kind DocumentKind, start, end time.Time) (int64, error)

	// SetPDFFileRef records the rendered PDF of a document without touching
	// anything else; finalized documents stay otherwise immutable.
	SetPDFFileRef(ctx context.Context, accountID, docID int64, ref string) error
}
