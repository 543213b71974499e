package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/shared"
)

// UpsertHead makes currentID the chain head for rootID.
func (s *Store) UpsertHead(ctx context.Context, q Querier, rootID, currentID int64) error {
	_, err := q.Exec(ctx, `INSERT INTO invoice_heads (root_invoice_id, current_invoice_id)
		VALUES ($1, $2)
		ON CONFLICT (root_invoice_id)
		DO UPDATE SET current_invoice_id = EXCLUDED.current_invoice_id`,
		rootID, currentID)
	return err
}

// GetHead returns the chain head for a root invoice.
func (s *Store) GetHead(ctx context.Context, q Querier, rootID int64) (billing.InvoiceHead, error) {
	var h billing.InvoiceHead
	err := q.QueryRow(ctx, `SELECT root_invoice_id, current_invoice_id FROM invoice_heads WHERE root_invoice_id = $1`, rootID).
		Scan(&h.RootInvoiceID, &h.CurrentInvoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return billing.InvoiceHead{}, shared.ErrNotFound
	}
	return h, err
}

// HasRevisionAfter reports whether any invoice already continues the chain
// from previousID. The chain must stay linear.
func (s *Store) HasRevisionAfter(ctx context.Context, q Querier, previousID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE previous_revision_id = $1)`, previousID).Scan(&exists)
	return exists, err
}

// ListRevisions returns every invoice in a chain, oldest first.
func (s *Store) ListRevisions(ctx context.Context, q Querier, accountID, rootID int64) ([]*billing.Document, error) {
	rows, err := q.Query(ctx, `SELECT id FROM documents
		WHERE account_id = $1 AND doc_type = $2 AND (id = $3 OR root_invoice_id = $3)
		ORDER BY id`, accountID, billing.KindInvoice, rootID)
	if err != nil {
		return nil, err
	}
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*billing.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(ctx, q, accountID, id, billing.KindInvoice, false)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// GetDraftCreditNoteForInvoice returns the invoice's open draft credit note,
// or shared.ErrNotFound. At most one draft per invoice exists.
func (s *Store) GetDraftCreditNoteForInvoice(ctx context.Context, q Querier, accountID, invoiceID int64) (*billing.Document, error) {
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM documents
		WHERE account_id = $1 AND doc_type = $2 AND invoice_id = $3 AND status = $4`,
		accountID, billing.KindCreditNote, invoiceID, billing.StatusDraft).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetDocument(ctx, q, accountID, id, billing.KindCreditNote, false)
}

// ListCreditNotesForInvoice returns the invoice's credit notes, oldest first.
func (s *Store) ListCreditNotesForInvoice(ctx context.Context, q Querier, accountID, invoiceID int64) ([]*billing.Document, error) {
	rows, err := q.Query(ctx, `SELECT id FROM documents
		WHERE account_id = $1 AND doc_type = $2 AND invoice_id = $3
		ORDER BY id`, accountID, billing.KindCreditNote, invoiceID)
	if err != nil {
		return nil, err
	}
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*billing.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(ctx, q, accountID, id, billing.KindCreditNote, false)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
