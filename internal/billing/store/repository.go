package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/platform/db"
)

// repository adapts Store to billing.Repository, binding every call to one
// Querier. The pool-bound form autocommits; InTx rebinds to a transaction.
type repository struct {
	store *Store
	q     Querier
}

// NewRepository returns a pool-bound billing.Repository.
func NewRepository(st *Store) billing.Repository {
	return &repository{store: st, q: st.pool}
}

func (r *repository) InTx(ctx context.Context, fn func(ctx context.Context, tr billing.Repository) error) error {
	return db.WithTx(ctx, r.store.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{store: r.store, q: tx})
	})
}

func (r *repository) CreateDocument(ctx context.Context, doc *billing.Document) error {
	return r.store.CreateDocument(ctx, r.q, doc)
}

func (r *repository) GetDocument(ctx context.Context, accountID, id int64, kind billing.DocumentKind, forUpdate bool) (*billing.Document, error) {
	return r.store.GetDocument(ctx, r.q, accountID, id, kind, forUpdate)
}

func (r *repository) SaveDocument(ctx context.Context, doc *billing.Document) error {
	return r.store.SaveDocument(ctx, r.q, doc)
}

func (r *repository) DeleteDocument(ctx context.Context, accountID, id int64) error {
	return r.store.DeleteDocument(ctx, r.q, accountID, id)
}

func (r *repository) ListDocuments(ctx context.Context, accountID int64, kind billing.DocumentKind, status billing.DocumentStatus, page, perPage int) ([]*billing.Document, int, error) {
	return r.store.ListDocuments(ctx, accountID, kind, status, page, perPage)
}

func (r *repository) GetCoupon(ctx context.Context, accountID, id int64) (billing.Coupon, error) {
	return r.store.GetCoupon(ctx, accountID, id)
}

func (r *repository) GetTaxRate(ctx context.Context, accountID, id int64) (billing.TaxRate, error) {
	return r.store.GetTaxRate(ctx, accountID, id)
}

func (r *repository) GetHead(ctx context.Context, rootID int64) (billing.InvoiceHead, error) {
	return r.store.GetHead(ctx, r.q, rootID)
}

func (r *repository) UpsertHead(ctx context.Context, rootID, currentID int64) error {
	return r.store.UpsertHead(ctx, r.q, rootID, currentID)
}

func (r *repository) ListRevisions(ctx context.Context, accountID, rootID int64) ([]*billing.Document, error) {
	return r.store.ListRevisions(ctx, r.q, accountID, rootID)
}

func (r *repository) HasRevisionAfter(ctx context.Context, previousID int64) (bool, error) {
	return r.store.HasRevisionAfter(ctx, r.q, previousID)
}

func (r *repository) GetDraftCreditNoteForInvoice(ctx context.Context, accountID, invoiceID int64) (*billing.Document, error) {
	return r.store.GetDraftCreditNoteForInvoice(ctx, r.q, accountID, invoiceID)
}

func (r *repository) ListCreditNotesForInvoice(ctx context.Context, accountID, invoiceID int64) ([]*billing.Document, error) {
	return r.store.ListCreditNotesForInvoice(ctx, r.q, accountID, invoiceID)
}

func (r *repository) CountInNumberingPeriod(ctx context.Context, accountID, systemID int64, kind billing.DocumentKind, start, end time.Time) (int64, error) {
	return r.store.CountInNumberingPeriod(ctx, r.q, accountID, systemID, kind, start, end)
}

func (r *repository) SetPDFFileRef(ctx context.Context, accountID, docID int64, ref string) error {
	return r.store.SetPDFFileRef(ctx, r.q, accountID, docID, ref)
}
