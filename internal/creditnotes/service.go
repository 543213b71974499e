// Package creditnotes owns the credit note lifecycle: drafting against an
// invoice, issuing, and voiding, with over-credit protection.
package creditnotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/invoices"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/shared"
)

// ErrOverCredit occurs when a credit note would exceed what the invoice
// still owes.
var ErrOverCredit = fmt.Errorf("%w: credit exceeds invoice outstanding", shared.ErrValidation)

// CreditRecalculator re-aggregates issued credit onto the invoice. Satisfied
// by the invoices service.
type CreditRecalculator interface {
	RecalculateCredit(ctx context.Context, r billing.Repository, accountID, invoiceID int64) error
}

// Deps wires the service's collaborators. Notifier is optional.
type Deps struct {
	Logger    *slog.Logger
	Repo      billing.Repository
	Numbering invoices.NumberingPort
	Invoices  CreditRecalculator
	Notifier  invoices.Notifier
	Behavior  billing.BehaviorResolver
}

// Service manages credit notes.
type Service struct {
	logger    *slog.Logger
	repo      billing.Repository
	editor    *billing.Editor
	numbering invoices.NumberingPort
	invoices  CreditRecalculator
	notifier  invoices.Notifier
	behavior  billing.BehaviorResolver
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	return &Service{
		logger:    d.Logger,
		repo:      d.Repo,
		editor:    billing.NewEditor(d.Repo, billing.KindCreditNote, d.Behavior),
		numbering: d.Numbering,
		invoices:  d.Invoices,
		notifier:  d.Notifier,
		behavior:  d.Behavior,
	}
}

// CreateDraft opens a draft credit note against an invoice. An invoice
// carries at most one draft at a time.
func (s *Service) CreateDraft(ctx context.Context, accountID, invoiceID int64, numberingSystemID *int64) (*billing.Document, error) {
	var note *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		inv, err := r.GetDocument(ctx, accountID, invoiceID, billing.KindInvoice, true)
		if err != nil {
			return err
		}
		if inv.Status != billing.StatusOpen && inv.Status != billing.StatusPaid {
			return fmt.Errorf("credit invoice %d: %w", invoiceID, shared.ErrInvalidTransition)
		}
		if _, err := r.GetDraftCreditNoteForInvoice(ctx, accountID, invoiceID); err == nil {
			return fmt.Errorf("credit invoice %d: %w: a draft credit note already exists", invoiceID, shared.ErrConflict)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		doc := &billing.Document{
			AccountID:         accountID,
			Kind:              billing.KindCreditNote,
			Status:            billing.StatusDraft,
			Currency:          inv.Currency,
			CustomerID:        inv.CustomerID,
			NumberingSystemID: numberingSystemID,
			InvoiceID:         &inv.ID,
		}
		if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
			return err
		}
		if err := r.CreateDocument(ctx, doc); err != nil {
			return err
		}
		note = doc
		return nil
	})
	return note, err
}

// Get loads one credit note.
func (s *Service) Get(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	return s.repo.GetDocument(ctx, accountID, id, billing.KindCreditNote, false)
}

// List returns a page of credit notes.
func (s *Service) List(ctx context.Context, accountID int64, status billing.DocumentStatus, page, perPage int) ([]*billing.Document, int, error) {
	return s.repo.ListDocuments(ctx, accountID, billing.KindCreditNote, status, page, perPage)
}

// Editor exposes the draft mutation operations that need no credit guard.
func (s *Service) Editor() *billing.Editor { return s.editor }

// AddLine appends a credit line, rejecting any amount the invoice cannot
// absorb. A line referencing an invoice line is additionally bounded by that
// line's own remaining balance.
func (s *Service) AddLine(ctx context.Context, accountID, id int64, in billing.LineInput) (*billing.Document, error) {
	return s.editor.Mutate(ctx, accountID, id, func(ctx context.Context, r billing.Repository, doc *billing.Document) error {
		line, err := s.editor.BuildLine(ctx, r, doc, in)
		if err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, line)
		if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
			return err
		}
		return s.checkCreditBounds(ctx, r, doc)
	})
}

// UpdateLine replaces a credit line's inputs under the same bounds as
// AddLine.
func (s *Service) UpdateLine(ctx context.Context, accountID, id, lineID int64, in billing.LineInput) (*billing.Document, error) {
	return s.editor.Mutate(ctx, accountID, id, func(ctx context.Context, r billing.Repository, doc *billing.Document) error {
		replaced := false
		for i, l := range doc.Lines {
			if l.ID != lineID {
				continue
			}
			line, err := s.editor.BuildLine(ctx, r, doc, in)
			if err != nil {
				return err
			}
			line.ID = l.ID
			doc.Lines[i] = line
			replaced = true
			break
		}
		if !replaced {
			return fmt.Errorf("line %d: %w", lineID, shared.ErrNotFound)
		}
		if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
			return err
		}
		return s.checkCreditBounds(ctx, r, doc)
	})
}

// DeleteLine removes a credit line. Removal only lowers the credit, so no
// bound check is needed.
func (s *Service) DeleteLine(ctx context.Context, accountID, id, lineID int64) (*billing.Document, error) {
	return s.editor.DeleteLine(ctx, accountID, id, lineID)
}

func (s *Service) checkCreditBounds(ctx context.Context, r billing.Repository, doc *billing.Document) error {
	if doc.InvoiceID == nil {
		return fmt.Errorf("%w: credit note is not linked to an invoice", shared.ErrValidation)
	}
	inv, err := r.GetDocument(ctx, doc.AccountID, *doc.InvoiceID, billing.KindInvoice, true)
	if err != nil {
		return err
	}
	if doc.TotalAmount.Cmp(inv.OutstandingAmount) > 0 {
		return ErrOverCredit
	}

	// Per invoice line: already-applied credit plus this draft's lines.
	for _, il := range inv.Lines {
		applied := il.TotalCreditAmount
		for _, cl := range doc.Lines {
			if cl.SourceLineID != nil && *cl.SourceLineID == il.ID {
				applied = applied.Add(cl.TotalAmount)
			}
		}
		if applied.Cmp(il.TotalAmount) > 0 {
			return fmt.Errorf("line %d: %w", il.ID, ErrOverCredit)
		}
	}

	for _, cl := range doc.Lines {
		if cl.SourceLineID == nil {
			continue
		}
		if !invoiceHasLine(inv, *cl.SourceLineID) {
			return fmt.Errorf("%w: invoice line %d does not exist", shared.ErrValidation, *cl.SourceLineID)
		}
	}
	return nil
}

func invoiceHasLine(inv *billing.Document, lineID int64) bool {
	for _, il := range inv.Lines {
		if il.ID == lineID {
			return true
		}
	}
	return false
}

// DeleteDraft removes a draft credit note.
func (s *Service) DeleteDraft(ctx context.Context, accountID, id int64) error {
	return s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindCreditNote, true)
		if err != nil {
			return err
		}
		if !doc.IsDraft() {
			return fmt.Errorf("delete credit note %d: %w", id, shared.ErrInvalidTransition)
		}
		return r.DeleteDocument(ctx, accountID, id)
	})
}

// Issue finalizes a draft credit note and re-aggregates credit onto the
// linked invoice within the same transaction. PDF and email run after the
// commit.
func (s *Service) Issue(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	var issued *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindCreditNote, true)
		if err != nil {
			return err
		}
		if !doc.IsDraft() {
			return fmt.Errorf("issue credit note %d: %w", id, shared.ErrInvalidTransition)
		}
		if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
			return err
		}
		if err := s.checkCreditBounds(ctx, r, doc); err != nil {
			return err
		}

		now := time.Now().UTC()
		doc.IssuedAt = &now
		if doc.Number == nil && doc.NumberingSystemID != nil {
			sys, err := s.numbering.GetByID(ctx, accountID, *doc.NumberingSystemID)
			if err != nil {
				return err
			}
			start, end := sys.CalculateBounds(now)
			count, err := r.CountInNumberingPeriod(ctx, accountID, sys.ID, doc.Kind, start, end)
			if err != nil {
				return err
			}
			n := sys.RenderNumber(count+1, now)
			doc.Number = &n
		}
		doc.Status = billing.StatusOpen
		if err := r.SaveDocument(ctx, doc); err != nil {
			return err
		}
		if err := s.invoices.RecalculateCredit(ctx, r, accountID, *doc.InvoiceID); err != nil {
			return err
		}
		issued = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.EnqueueRenderPDF(ctx, issued.Kind, accountID, issued.ID); err != nil {
			s.logger.Error("enqueue credit note pdf", slog.Any("error", err), slog.Int64("credit_note_id", issued.ID))
		}
		if err := s.notifier.EnqueueSendEmail(ctx, issued.Kind, accountID, issued.ID); err != nil {
			s.logger.Error("enqueue credit note email", slog.Any("error", err), slog.Int64("credit_note_id", issued.ID))
		}
	}
	return issued, nil
}

// Void reverts an issued credit note and re-aggregates the invoice's credit
// without it.
func (s *Service) Void(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	var voided *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindCreditNote, true)
		if err != nil {
			return err
		}
		if doc.Status != billing.StatusOpen {
			return fmt.Errorf("void credit note %d: %w", id, shared.ErrInvalidTransition)
		}
		now := time.Now().UTC()
		doc.Status = billing.StatusVoided
		doc.VoidedAt = &now
		if err := r.SaveDocument(ctx, doc); err != nil {
			return err
		}
		if doc.InvoiceID != nil {
			if err := s.invoices.RecalculateCredit(ctx, r, accountID, *doc.InvoiceID); err != nil {
				return err
			}
		}
		voided = doc
		return nil
	})
	return voided, err
}

// Outstanding reports how much credit the invoice can still absorb.
func (s *Service) Outstanding(ctx context.Context, accountID, invoiceID int64) (money.Money, error) {
	inv, err := s.repo.GetDocument(ctx, accountID, invoiceID, billing.KindInvoice, false)
	if err != nil {
		return money.Money{}, err
	}
	return inv.OutstandingAmount, nil
}
