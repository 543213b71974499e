// Package quotes owns the quote lifecycle. Quotes share the document engine
// but carry no shipping, credits, or payments.
package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/invoices"
	"github.com/billhaven/billhaven/internal/shared"
)

// Deps wires the service's collaborators. Notifier is optional.
type Deps struct {
	Logger    *slog.Logger
	Repo      billing.Repository
	Snapshots invoices.SnapshotTaker
	Numbering invoices.NumberingPort
	Notifier  invoices.Notifier
	Behavior  billing.BehaviorResolver
}

// Service manages quotes.
type Service struct {
	logger    *slog.Logger
	repo      billing.Repository
	editor    *billing.Editor
	snapshots invoices.SnapshotTaker
	numbering invoices.NumberingPort
	notifier  invoices.Notifier
	behavior  billing.BehaviorResolver
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	return &Service{
		logger:    d.Logger,
		repo:      d.Repo,
		editor:    billing.NewEditor(d.Repo, billing.KindQuote, d.Behavior),
		snapshots: d.Snapshots,
		numbering: d.Numbering,
		notifier:  d.Notifier,
		behavior:  d.Behavior,
	}
}

// Editor exposes the draft mutation operations.
func (s *Service) Editor() *billing.Editor { return s.editor }

// CreateDraftRequest carries the fields accepted at creation.
type CreateDraftRequest struct {
	CustomerID        int64   `json:"customer_id" validate:"required"`
	Currency          string  `json:"currency" validate:"required,len=3"`
	NumberingSystemID *int64  `json:"numbering_system_id,omitempty"`
	Number            *string `json:"number,omitempty" validate:"omitempty,max=100"`
}

// CreateDraft creates an empty draft quote. A manually assigned number and a
// numbering system are mutually exclusive.
func (s *Service) CreateDraft(ctx context.Context, accountID int64, req CreateDraftRequest) (*billing.Document, error) {
	if req.Number != nil && req.NumberingSystemID != nil {
		return nil, fmt.Errorf("%w: number and numbering_system_id are mutually exclusive", shared.ErrValidation)
	}
	doc := &billing.Document{
		AccountID:         accountID,
		Kind:              billing.KindQuote,
		Status:            billing.StatusDraft,
		Currency:          req.Currency,
		CustomerID:        req.CustomerID,
		NumberingSystemID: req.NumberingSystemID,
		Number:            req.Number,
	}
	if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
		return nil, err
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}
	return doc, nil
}

// Get loads one quote.
func (s *Service) Get(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	return s.repo.GetDocument(ctx, accountID, id, billing.KindQuote, false)
}

// List returns a page of quotes.
func (s *Service) List(ctx context.Context, accountID int64, status billing.DocumentStatus, page, perPage int) ([]*billing.Document, int, error) {
	return s.repo.ListDocuments(ctx, accountID, billing.KindQuote, status, page, perPage)
}

// DeleteDraft removes a draft quote.
func (s *Service) DeleteDraft(ctx context.Context, accountID, id int64) error {
	return s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindQuote, true)
		if err != nil {
			return err
		}
		if !doc.IsDraft() {
			return fmt.Errorf("delete quote %d: %w", id, shared.ErrInvalidTransition)
		}
		return r.DeleteDocument(ctx, accountID, id)
	})
}

// Finalize moves a draft quote to OPEN, assigning its number and freezing
// the customer details.
func (s *Service) Finalize(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	var finalized *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindQuote, true)
		if err != nil {
			return err
		}
		if !doc.IsDraft() {
			return fmt.Errorf("finalize quote %d: %w", id, shared.ErrInvalidTransition)
		}
		if err := billing.Recalculate(doc, s.behavior(doc.Currency)); err != nil {
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

		snap, err := s.snapshots.Snapshot(ctx, accountID, doc.CustomerID)
		if err != nil {
			return err
		}
		doc.CustomerSnapshotID = &snap.ID
		doc.Status = billing.StatusOpen
		if err := r.SaveDocument(ctx, doc); err != nil {
			return err
		}
		finalized = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.EnqueueRenderPDF(ctx, finalized.Kind, accountID, finalized.ID); err != nil {
			s.logger.Error("enqueue quote pdf", slog.Any("error", err), slog.Int64("quote_id", finalized.ID))
		}
		if err := s.notifier.EnqueueSendEmail(ctx, finalized.Kind, accountID, finalized.ID); err != nil {
			s.logger.Error("enqueue quote email", slog.Any("error", err), slog.Int64("quote_id", finalized.ID))
		}
	}
	return finalized, nil
}

// Void retires an OPEN quote.
func (s *Service) Void(ctx context.Context, accountID, id int64) (*billing.Document, error) {
	var voided *billing.Document
	err := s.repo.InTx(ctx, func(ctx context.Context, r billing.Repository) error {
		doc, err := r.GetDocument(ctx, accountID, id, billing.KindQuote, true)
		if err != nil {
			return err
		}
		if doc.Status != billing.StatusOpen {
			return fmt.Errorf("void quote %d: %w", id, shared.ErrInvalidTransition)
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
