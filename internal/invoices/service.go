// Package invoices owns the invoice lifecycle: drafting, finalizing,
// voiding, revisions, and credit aggregation.
package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/customers"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/numbering"
	"github.com/billhaven/billhaven/internal/payments"
	"github.com/billhaven/billhaven/internal/shared"
)

// DefaultDueDays applies when a draft carries no due date at finalize time.
const DefaultDueDays = 30

// SnapshotTaker freezes customer billing details at finalize time.
type SnapshotTaker interface {
	Snapshot(ctx context.Context, accountID, customerID int64) (*customers.Snapshot, error)
}

// NumberingPort resolves the numbering system assigned to a draft.
type NumberingPort interface {
	GetByID(ctx context.Context, accountID, id int64) (numbering.System, error)
}

// Notifier enqueues the post-transition side effects. Failures are logged,
// never propagated: the state transition has already committed.
type Notifier interface {
	EnqueueRenderPDF(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) error
	EnqueueSendEmail(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) error
}

// Deps wires the service's collaborators. Checkout, Payments, and Notifier
// are optional.
type Deps struct {
	Logger    *slog.Logger
	Repo      billing.Repository
	Snapshots SnapshotTaker
	Numbering NumberingPort
	Checkout  payments.CheckoutProvider
	Payments  payments.RepositoryPort
	Notifier  Notifier
	Behavior  billing.BehaviorResolver
}

// Service manages invoices.
type Service struct {
	logger    *slog.Logger
	repo      billing.Repository
	editor    *billing.Editor
	snapshots SnapshotTaker
	numbering NumberingPort
	checkout  payments.CheckoutProvider
	payments  payments.RepositoryPort
	notifier  Notifier
	behavior  billing.BehaviorResolver
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	return &Service{
		logger:    d.Logger,
		repo:      d.Repo,
		editor:    billing.NewEditor(d.Repo, billing.KindInvoice, d.Behavior),
		snapshots: d.Snapshots,
		numbering: d.Numbering,
		checkout:  d.Checkout,
		payments:  d.Payments,
		notifier:  d.Notifier,
		behavior:  d.Behavior,
	}
}

// Editor exposes the draft mutation operations.
func (s *Service) Editor() *billing.Editor { return s.editor }

// CreateDraftRequest carries the fields accepted at creation.
type CreateDraftRequest struct {
	CustomerID        int64      `json:"customer_id" validate:"required"`
	Currency          string     `json:"currency" validate:"required,len=3"`
	NumberingSystemID *int64     `json:"numbering_system_id,omitempty"`
	Number            *string    `json:"number,omitempty" validate:"omitempty,max=100"`
	DueAt             *time.Time `json:"due_at,omitempty"`
}

// CreateDraft creates an empty draft invoice. A manually assigned number and
// a numbering system are mutually exclusive.
func (s *Service) CreateDraft(ctx context.Context, accountID int64, req CreateDraftRequest) (*billing.Document, error) {
	if req.Number != nil && req.NumberingSystemID != nil {
		return nil, fmt.Errorf("%w: number and numbering_system_id are mutually exclusive", shared.ErrValidation)
	}
	doc := &billing.Document{
		AccountID:         accountID,
		Kind:              billing.KindInvoice,
		Status:            billing.StatusDraft,
		Currency:          req.Currency,
		CustomerID:        req.CustomerID,
		NumberingSystemID: req.NumberingSystemID,
		Number:            req.Number,
		DueAt:             req.DueAt,
	}
	if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
		return nil, err
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return doc, nil
}

// Get loads one invoice.
func (s *Service) Get(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	return s.repo.GetDocument(ctx, accountID, id, billing.KindInvoice, false)
}

// List returns a page of invoices.
func (s *Service) List(ctx context.Context, accountID int64, status billing.DocumentStatus, page, perPage int) ([]*billing.Document, int, error) {
	return s.repo.ListDocuments(ctx, accountID, billing.KindInvoice, status, page, perPage)
}

// ListRevisions returns the chain an invoice belongs to, oldest first.
func (s *Service) ListRevisions(ctx context.Context, accountID, id int64) ([]*billing.Document, error) {
	doc, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	rootID := doc.ID
	if doc.RootInvoiceID != nil {
		rootID = *doc.RootInvoiceID
	}
	return s.repo.ListRevisions(ctx, accountID, rootID)
}

// DeleteDraft removes a draft. Finalized invoices are never deleted.
func (s *Service) DeleteDraft(ctx context.Context, accountID, id int64) error {
	return s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindInvoice, true)
		if err != nil {
			return err
		}
		if !doc.IsDraft() {
			return fmt.Errorf("delete invoice %d: %w", id, shared.ErrInvalidTransition)
		}
		return r.DeleteDocument(ctx, accountID, id)
	})
}

// Finalize moves a draft to OPEN: assigns a number, sets the due date,
// snapshots the customer, voids the previous revision if this is one, and
// updates the chain head. A draft with nothing payable goes straight to
// PAID. PDF, email, and checkout run after the commit.
func (s *Service) Finalize(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	var finalized *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindInvoice, true)
		if err != nil {
			return err
		}
		if !doc.IsDraft() {
			return fmt.Errorf("finalize invoice %d: %w", id, shared.ErrInvalidTransition)
		}
		if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
			return err
		}

		now := time.Now().UTC()
		doc.IssuedAt = &now
		if doc.DueAt == nil {
			due := now.AddDate(0, 0, DefaultDueDays)
			doc.DueAt = &due
		}
		if doc.Number == nil {
			if err := s.assignNumber(ctx, r, doc, now); err != nil {
				return err
			}
		}

		snap, err := s.snapshots.Snapshot(ctx, accountID, doc.CustomerID)
		if err != nil {
			return err
		}
		doc.CustomerSnapshotID = &snap.ID

		if doc.PreviousRevisionID != nil {
			prev, err := r.GetDocument(ctx, accountID, *doc.PreviousRevisionID, billing.KindInvoice, true)
			if err != nil {
				return err
			}
			if prev.Status == billing.StatusOpen {
				prev.Status = billing.StatusVoided
				prev.VoidedAt = &now
				if err := r.SaveDocument(ctx, prev); err != nil {
					return err
				}
			}
			if err := r.UpsertHead(ctx, *doc.RootInvoiceID, doc.ID); err != nil {
				return err
			}
		} else {
			if err := r.UpsertHead(ctx, doc.ID, doc.ID); err != nil {
				return err
			}
		}

		if len(doc.Lines) == 0 || doc.OutstandingAmount.IsZero() {
			doc.Status = billing.StatusPaid
			doc.PaidAt = &now
		} else {
			doc.Status = billing.StatusOpen
		}
		if err := r.SaveDocument(ctx, doc); err != nil {
			return err
		}
		finalized = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterIssue(ctx, finalized)
	return finalized, nil
}

func (s *Service) assignNumber(ctx context.Context, r billing.Repository, doc *billing.Document, at time.Time) error {
	if doc.NumberingSystemID == nil {
		return nil
	}
	sys, err := s.numbering.GetByID(ctx, doc.AccountID, *doc.NumberingSystemID)
	if err != nil {
		return err
	}
	start, end := sys.CalculateBounds(at)
	count, err := r.CountInNumberingPeriod(ctx, doc.AccountID, sys.ID, doc.Kind, start, end)
	if err != nil {
		return err
	}
	n := sys.RenderNumber(count+1, at)
	doc.Number = &n
	return nil
}

// afterIssue runs the best-effort side effects of a finalize. None of them
// can revert the committed transition.
func (s *Service) afterIssue(ctx context.Context, doc *billing.Document) {
	if s.notifier != nil {
		if err := s.notifier.EnqueueRenderPDF(ctx, doc.Kind, doc.AccountID, doc.ID); err != nil {
			s.logger.Error("enqueue invoice pdf", slog.Any("error", err), slog.Int64("invoice_id", doc.ID))
		}
		if err := s.notifier.EnqueueSendEmail(ctx, doc.Kind, doc.AccountID, doc.ID); err != nil {
			s.logger.Error("enqueue invoice email", slog.Any("error", err), slog.Int64("invoice_id", doc.ID))
		}
	}

	if s.checkout == nil || doc.Status != billing.StatusOpen {
		return
	}
	result, err := s.checkout.Checkout(ctx, doc)
	payment := payments.Payment{
		AccountID: doc.AccountID,
		InvoiceID: doc.ID,
		Amount:    doc.OutstandingAmount,
	}
	if err != nil {
		s.logger.Error("checkout", slog.Any("error", err), slog.Int64("invoice_id", doc.ID))
		reason := err.Error()
		payment.Status = payments.StatusFailed
		payment.FailureReason = &reason
	} else {
		payment.Status = payments.StatusSucceeded
		payment.TransactionID = &result.TransactionID
		payment.CheckoutURL = &result.URL
	}
	if s.payments != nil {
		if err := s.payments.Create(ctx, &payment); err != nil {
			s.logger.Error("record payment", slog.Any("error", err), slog.Int64("invoice_id", doc.ID))
		}
	}
}

// Void moves an OPEN invoice to VOIDED without touching totals.
func (s *Service) Void(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	var voided *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindInvoice, true)
		if err != nil {
			return err
		}
		if doc.Status != billing.StatusOpen {
			return fmt.Errorf("void invoice %d: %w", id, shared.ErrInvalidTransition)
		}
		now := time.Now().UTC()
		doc.Status = billing.StatusVoided
		doc.VoidedAt = &now
		if err := r.SaveDocument(ctx, doc); err != nil {
			return err
		}
		voided = doc
		return nil
	})
	return voided, err
}

// Revise creates a new draft revision from an OPEN or VOIDED invoice. The
// chain stays linear: an invoice that already has a successor cannot be
// revised again.
func (s *Service) Revise(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	var revision *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		src, err := r.GetDocument(ctx, accountID, id, billing.KindInvoice, true)
		if err != nil {
			return err
		}
		if src.Status != billing.StatusOpen && src.Status != billing.StatusVoided {
			return fmt.Errorf("revise invoice %d: %w", id, shared.ErrInvalidTransition)
		}
		taken, err := r.HasRevisionAfter(ctx, src.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("revise invoice %d: %w: a later revision exists", id, shared.ErrConflict)
		}

		rootID := src.ID
		if src.RootInvoiceID != nil {
			rootID = *src.RootInvoiceID
		}
		clone := cloneForRevision(src, rootID)
		if err := billing.Recalculate(clone, s.behavior(clone.Currency)); err != nil {
			return err
		}
		if err := r.CreateDocument(ctx, clone); err != nil {
			return err
		}
		revision = clone
		return nil
	})
	return revision, err
}

func cloneForRevision(src *billing.Document, rootID int64) *billing.Document {
	prevID := src.ID
	clone := &billing.Document{
		AccountID:          src.AccountID,
		Kind:               billing.KindInvoice,
		Status:             billing.StatusDraft,
		Currency:           src.Currency,
		CustomerID:         src.CustomerID,
		NumberingSystemID:  src.NumberingSystemID,
		DueAt:              src.DueAt,
		RootInvoiceID:      &rootID,
		PreviousRevisionID: &prevID,
		Coupons:            append([]billing.Coupon(nil), src.Coupons...),
		TaxRates:           append([]billing.TaxRate(nil), src.TaxRates...),
	}
	if src.Shipping != nil {
		shipping := *src.Shipping
		clone.Shipping = &shipping
	}
	for _, l := range src.Lines {
		line := &billing.DocumentLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitAmount:  l.UnitAmount,
			Price:       l.Price,
			Coupons:     append([]billing.Coupon(nil), l.Coupons...),
			TaxRates:    append([]billing.TaxRate(nil), l.TaxRates...),
		}
		clone.Lines = append(clone.Lines, line)
	}
	return clone
}

// RecalculateCredit re-aggregates every issued credit note of the invoice
// onto its lines and totals, marking the invoice PAID when fully covered and
// reopening it when a voided note uncovers it.
// Callers pass their transaction-bound repository; credit-note issuance and
// voiding run this in the same transaction as their own transition.
func (s *Service) RecalculateCredit(ctx context.Context, r billing.Repository, accountID, invoiceID int64) error {
	inv, err := r.GetDocument(ctx, accountID, invoiceID, billing.KindInvoice, true)
	if err != nil {
		return err
	}

	for _, line := range inv.Lines {
		line.TotalCreditAmount = money.Zero(inv.Currency)
		line.CreditQuantity = decimal.Zero
	}

	notes, err := r.ListCreditNotesForInvoice(ctx, accountID, invoiceID)
	if err != nil {
		return err
	}
	custom := money.Zero(inv.Currency)
	for _, note := range notes {
		if note.Status != billing.StatusOpen && note.Status != billing.StatusPaid {
			continue
		}
		for _, cl := range note.Lines {
			if cl.SourceLineID == nil {
				custom = custom.Add(cl.TotalAmount)
				continue
			}
			for _, il := range inv.Lines {
				if il.ID == *cl.SourceLineID {
					il.TotalCreditAmount = il.TotalCreditAmount.Add(cl.TotalAmount)
					if cl.Quantity != nil {
						il.CreditQuantity = il.CreditQuantity.Add(*cl.Quantity)
					}
					break
				}
			}
		}
	}

	// Custom credit lines reference no invoice line; spread them across the
	// lines' remaining balances so line-level outstanding stays meaningful.
	if !custom.IsZero() {
		bases := make([]money.Money, len(inv.Lines))
		for i, il := range inv.Lines {
			remaining := il.TotalAmount.Sub(il.TotalCreditAmount)
			bases[i] = money.Max(remaining, money.Zero(inv.Currency))
		}
		shares := money.AllocateProportionally(custom, bases)
		for i, il := range inv.Lines {
			il.TotalCreditAmount = il.TotalCreditAmount.Add(shares[i])
		}
	}

	if err := billing.Recalculate(inv, s.behavior(inv.Currency)); err != nil {
		return err
	}
	switch {
	case inv.Status == billing.StatusOpen && inv.OutstandingAmount.IsZero():
		now := time.Now().UTC()
		inv.Status = billing.StatusPaid
		inv.PaidAt = &now
	case inv.Status == billing.StatusPaid && !inv.OutstandingAmount.IsZero() && inv.TotalPaidAmount.IsZero():
		// A voided credit note can reopen an invoice it had fully covered.
		inv.Status = billing.StatusOpen
		inv.PaidAt = nil
	}
	return r.SaveDocument(ctx, inv)
}
