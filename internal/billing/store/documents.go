package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/pricing"
	"github.com/billhaven/billhaven/internal/shared"
)

// Attached coupons, tax rates, prices, and computed allocations are stored
// as JSONB snapshots on the document and line rows. Catalog edits therefore
// never alter a document after attachment.

func asJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func fromJSON(raw []byte, target any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// CreateDocument inserts the document and its lines.
func (s *Store) CreateDocument(ctx context.Context, q Querier, doc *billing.Document) error {
	coupons, err := asJSON(doc.Coupons)
	if err != nil {
		return fmt.Errorf("store: encode coupons: %w", err)
	}
	taxRates, err := asJSON(doc.TaxRates)
	if err != nil {
		return fmt.Errorf("store: encode tax rates: %w", err)
	}
	shipping, err := asJSON(doc.Shipping)
	if err != nil {
		return fmt.Errorf("store: encode shipping: %w", err)
	}
	discountAllocs, err := asJSON(doc.DiscountAllocations)
	if err != nil {
		return fmt.Errorf("store: encode discount allocations: %w", err)
	}
	taxAllocs, err := asJSON(doc.TaxAllocations)
	if err != nil {
		return fmt.Errorf("store: encode tax allocations: %w", err)
	}

	err = q.QueryRow(ctx, `INSERT INTO documents (
		account_id, doc_type, status, currency, customer_id, customer_snapshot_id,
		numbering_system_id, number, issued_at, paid_at, voided_at, due_at,
		root_invoice_id, previous_revision_id, invoice_id,
		coupons, tax_rates, shipping,
		subtotal_amount, total_discount_amount, total_excluding_tax_amount,
		total_tax_amount, total_amount, total_credit_amount, total_paid_amount,
		outstanding_amount, discount_allocations, tax_allocations, pdf_file_ref,
		created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,now(),now())
	RETURNING id`,
		doc.AccountID, doc.Kind, doc.Status, doc.Currency, doc.CustomerID, doc.CustomerSnapshotID,
		doc.NumberingSystemID, doc.Number, doc.IssuedAt, doc.PaidAt, doc.VoidedAt, doc.DueAt,
		doc.RootInvoiceID, doc.PreviousRevisionID, doc.InvoiceID,
		coupons, taxRates, shipping,
		doc.SubtotalAmount.Amount, doc.TotalDiscountAmount.Amount, doc.TotalExcludingTaxAmount.Amount,
		doc.TotalTaxAmount.Amount, doc.TotalAmount.Amount, doc.TotalCreditAmount.Amount,
		doc.TotalPaidAmount.Amount, doc.OutstandingAmount.Amount,
		discountAllocs, taxAllocs, doc.PDFFileRef,
	).Scan(&doc.ID)
	if err != nil {
		return mapPgError(err)
	}

	for i, line := range doc.Lines {
		line.Position = i
		if err := s.insertLine(ctx, q, doc.ID, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertLine(ctx context.Context, q Querier, docID int64, line *billing.DocumentLine) error {
	coupons, err := asJSON(line.Coupons)
	if err != nil {
		return fmt.Errorf("store: encode line coupons: %w", err)
	}
	taxRates, err := asJSON(line.TaxRates)
	if err != nil {
		return fmt.Errorf("store: encode line tax rates: %w", err)
	}
	price, err := asJSON(line.Price)
	if err != nil {
		return fmt.Errorf("store: encode price: %w", err)
	}
	discountAllocs, err := asJSON(line.DiscountAllocations)
	if err != nil {
		return fmt.Errorf("store: encode line discount allocations: %w", err)
	}
	taxAllocs, err := asJSON(line.TaxAllocations)
	if err != nil {
		return fmt.Errorf("store: encode line tax allocations: %w", err)
	}

	return q.QueryRow(ctx, `INSERT INTO document_lines (
		document_id, position, description, quantity, unit_amount, price,
		coupons, tax_rates, source_line_id,
		total_credit_amount, credit_quantity,
		amount, total_discount_amount, total_taxable_amount,
		total_excluding_tax_amount, total_tax_amount, total_amount,
		outstanding_amount, outstanding_quantity,
		discount_allocations, tax_allocations
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	RETURNING id`,
		docID, line.Position, line.Description, line.Quantity, line.UnitAmount.Amount, price,
		coupons, taxRates, line.SourceLineID,
		line.TotalCreditAmount.Amount, line.CreditQuantity,
		line.Amount.Amount, line.TotalDiscountAmount.Amount, line.TotalTaxableAmount.Amount,
		line.TotalExcludingTaxAmount.Amount, line.TotalTaxAmount.Amount, line.TotalAmount.Amount,
		line.OutstandingAmount.Amount, line.OutstandingQuantity,
		discountAllocs, taxAllocs,
	).Scan(&line.ID)
}

// GetDocument loads a document with its lines. With forUpdate the document
// row is locked for the remainder of the transaction, serialising concurrent
// mutations of the same document.
func (s *Store) GetDocument(ctx context.Context, q Querier, accountID, id int64, kind billing.DocumentKind, forUpdate bool) (*billing.Document, error) {
	query := `SELECT id, account_id, doc_type, status, currency, customer_id, customer_snapshot_id,
		numbering_system_id, number, issued_at, paid_at, voided_at, due_at,
		root_invoice_id, previous_revision_id, invoice_id,
		coupons, tax_rates, shipping,
		subtotal_amount, total_discount_amount, total_excluding_tax_amount,
		total_tax_amount, total_amount, total_credit_amount, total_paid_amount,
		outstanding_amount, discount_allocations, tax_allocations, pdf_file_ref
	FROM documents WHERE account_id = $1 AND id = $2 AND doc_type = $3`
	if forUpdate {
		query += " FOR UPDATE"
	}

	doc := &billing.Document{}
	var coupons, taxRates, shipping, discountAllocs, taxAllocs []byte
	var subtotal, discount, excl, tax, total, credit, paid, outstanding decimal.Decimal
	err := q.QueryRow(ctx, query, accountID, id, kind).Scan(
		&doc.ID, &doc.AccountID, &doc.Kind, &doc.Status, &doc.Currency, &doc.CustomerID, &doc.CustomerSnapshotID,
		&doc.NumberingSystemID, &doc.Number, &doc.IssuedAt, &doc.PaidAt, &doc.VoidedAt, &doc.DueAt,
		&doc.RootInvoiceID, &doc.PreviousRevisionID, &doc.InvoiceID,
		&coupons, &taxRates, &shipping,
		&subtotal, &discount, &excl, &tax, &total, &credit, &paid, &outstanding,
		&discountAllocs, &taxAllocs, &doc.PDFFileRef,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := fromJSON(coupons, &doc.Coupons); err != nil {
		return nil, fmt.Errorf("store: decode coupons: %w", err)
	}
	if err := fromJSON(taxRates, &doc.TaxRates); err != nil {
		return nil, fmt.Errorf("store: decode tax rates: %w", err)
	}
	if len(shipping) > 0 {
		doc.Shipping = &billing.Shipping{}
		if err := fromJSON(shipping, doc.Shipping); err != nil {
			return nil, fmt.Errorf("store: decode shipping: %w", err)
		}
	}
	if err := fromJSON(discountAllocs, &doc.DiscountAllocations); err != nil {
		return nil, fmt.Errorf("store: decode discount allocations: %w", err)
	}
	if err := fromJSON(taxAllocs, &doc.TaxAllocations); err != nil {
		return nil, fmt.Errorf("store: decode tax allocations: %w", err)
	}

	cur := doc.Currency
	doc.SubtotalAmount = money.New(subtotal, cur)
	doc.TotalDiscountAmount = money.New(discount, cur)
	doc.TotalExcludingTaxAmount = money.New(excl, cur)
	doc.TotalTaxAmount = money.New(tax, cur)
	doc.TotalAmount = money.New(total, cur)
	doc.TotalCreditAmount = money.New(credit, cur)
	doc.TotalPaidAmount = money.New(paid, cur)
	doc.OutstandingAmount = money.New(outstanding, cur)

	if doc.Lines, err = s.loadLines(ctx, q, doc.ID, cur); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) loadLines(ctx context.Context, q Querier, docID int64, currency string) ([]*billing.DocumentLine, error) {
	rows, err := q.Query(ctx, `SELECT id, position, description, quantity, unit_amount, price,
		coupons, tax_rates, source_line_id,
		total_credit_amount, credit_quantity,
		amount, total_discount_amount, total_taxable_amount,
		total_excluding_tax_amount, total_tax_amount, total_amount,
		outstanding_amount, outstanding_quantity,
		discount_allocations, tax_allocations
	FROM document_lines WHERE document_id = $1 ORDER BY position`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*billing.DocumentLine
	for rows.Next() {
		line := &billing.DocumentLine{}
		var price, coupons, taxRates, discountAllocs, taxAllocs []byte
		var unit, creditAmt, amount, discount, taxable, excl, tax, total, outstanding decimal.Decimal
		err := rows.Scan(&line.ID, &line.Position, &line.Description, &line.Quantity, &unit, &price,
			&coupons, &taxRates, &line.SourceLineID,
			&creditAmt, &line.CreditQuantity,
			&amount, &discount, &taxable, &excl, &tax, &total,
			&outstanding, &line.OutstandingQuantity,
			&discountAllocs, &taxAllocs)
		if err != nil {
			return nil, err
		}
		if len(price) > 0 {
			line.Price = &pricing.Price{}
			if err := fromJSON(price, line.Price); err != nil {
				return nil, fmt.Errorf("store: decode price: %w", err)
			}
		}
		if err := fromJSON(coupons, &line.Coupons); err != nil {
			return nil, fmt.Errorf("store: decode line coupons: %w", err)
		}
		if err := fromJSON(taxRates, &line.TaxRates); err != nil {
			return nil, fmt.Errorf("store: decode line tax rates: %w", err)
		}
		if err := fromJSON(discountAllocs, &line.DiscountAllocations); err != nil {
			return nil, fmt.Errorf("store: decode line discount allocations: %w", err)
		}
		if err := fromJSON(taxAllocs, &line.TaxAllocations); err != nil {
			return nil, fmt.Errorf("store: decode line tax allocations: %w", err)
		}

		line.UnitAmount = money.New(unit, currency)
		line.TotalCreditAmount = money.New(creditAmt, currency)
		line.Amount = money.New(amount, currency)
		line.TotalDiscountAmount = money.New(discount, currency)
		line.TotalTaxableAmount = money.New(taxable, currency)
		line.TotalExcludingTaxAmount = money.New(excl, currency)
		line.TotalTaxAmount = money.New(tax, currency)
		line.TotalAmount = money.New(total, currency)
		line.OutstandingAmount = money.New(outstanding, currency)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// SaveDocument persists the document's mutable state after a recalculation
// or lifecycle transition. Lines are replaced wholesale; drafts are the only
// documents whose line set changes, and they are small.
func (s *Store) SaveDocument(ctx context.Context, q Querier, doc *billing.Document) error {
	coupons, err := asJSON(doc.Coupons)
	if err != nil {
		return fmt.Errorf("store: encode coupons: %w", err)
	}
	taxRates, err := asJSON(doc.TaxRates)
	if err != nil {
		return fmt.Errorf("store: encode tax rates: %w", err)
	}
	shipping, err := asJSON(doc.Shipping)
	if err != nil {
		return fmt.Errorf("store: encode shipping: %w", err)
	}
	discountAllocs, err := asJSON(doc.DiscountAllocations)
	if err != nil {
		return fmt.Errorf("store: encode discount allocations: %w", err)
	}
	taxAllocs, err := asJSON(doc.TaxAllocations)
	if err != nil {
		return fmt.Errorf("store: encode tax allocations: %w", err)
	}

	tag, err := q.Exec(ctx, `UPDATE documents SET
		status = $2, customer_id = $3, customer_snapshot_id = $4,
		numbering_system_id = $5, number = $6,
		issued_at = $7, paid_at = $8, voided_at = $9, due_at = $10,
		root_invoice_id = $11, previous_revision_id = $12,
		coupons = $13, tax_rates = $14, shipping = $15,
		subtotal_amount = $16, total_discount_amount = $17, total_excluding_tax_amount = $18,
		total_tax_amount = $19, total_amount = $20, total_credit_amount = $21,
		total_paid_amount = $22, outstanding_amount = $23,
		discount_allocations = $24, tax_allocations = $25, pdf_file_ref = $26,
		updated_at = now()
	WHERE id = $1`,
		doc.ID, doc.Status, doc.CustomerID, doc.CustomerSnapshotID,
		doc.NumberingSystemID, doc.Number,
		doc.IssuedAt, doc.PaidAt, doc.VoidedAt, doc.DueAt,
		doc.RootInvoiceID, doc.PreviousRevisionID,
		coupons, taxRates, shipping,
		doc.SubtotalAmount.Amount, doc.TotalDiscountAmount.Amount, doc.TotalExcludingTaxAmount.Amount,
		doc.TotalTaxAmount.Amount, doc.TotalAmount.Amount, doc.TotalCreditAmount.Amount,
		doc.TotalPaidAmount.Amount, doc.OutstandingAmount.Amount,
		discountAllocs, taxAllocs, doc.PDFFileRef,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}

	if _, err := q.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, doc.ID); err != nil {
		return err
	}
	for i, line := range doc.Lines {
		line.Position = i
		if err := s.insertLine(ctx, q, doc.ID, line); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocument removes a document and its lines. Services only call this
// for drafts. Lines carry no account column, so their delete joins through
// the document to keep the whole operation account-scoped.
func (s *Store) DeleteDocument(ctx context.Context, q Querier, accountID, id int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM document_lines l USING documents d
		WHERE l.document_id = d.id AND d.account_id = $1 AND d.id = $2`, accountID, id); err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `DELETE FROM documents WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListDocuments returns a page of documents of one kind, newest first.
func (s *Store) ListDocuments(ctx context.Context, accountID int64, kind billing.DocumentKind, status billing.DocumentStatus, page, perPage int) ([]*billing.Document, int, error) {
	p := shared.NewPagination(page, perPage, 0)
	offset := (p.Page - 1) * p.PerPage

	filter := `account_id = $1 AND doc_type = $2`
	args := []any{accountID, kind}
	if status != "" {
		filter += ` AND status = $3`
		args = append(args, status)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM documents WHERE %s ORDER BY id DESC LIMIT %d OFFSET %d`, filter, p.PerPage, offset), args...)
	if err != nil {
		return nil, 0, err
	}
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	out := make([]*billing.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(ctx, s.pool, accountID, id, kind, false)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, nil
}

// CountInNumberingPeriod counts same-kind documents assigned to the system
// within [start, end), used to derive the next number position.
func (s *Store) CountInNumberingPeriod(ctx context.Context, q Querier, accountID, systemID int64, kind billing.DocumentKind, start, end time.Time) (int64, error) {
	var n int64
	err := q.QueryRow(ctx, `SELECT count(*) FROM documents
		WHERE account_id = $1 AND numbering_system_id = $2 AND doc_type = $3
		AND number IS NOT NULL AND issued_at >= $4 AND issued_at < $5`,
		accountID, systemID, kind, start, end).Scan(&n)
	return n, err
}

// SetPDFFileRef records the rendered PDF reference of a document.
func (s *Store) SetPDFFileRef(ctx context.Context, q Querier, accountID, docID int64, ref string) error {
	tag, err := q.Exec(ctx, `UPDATE documents SET pdf_file_ref = $3 WHERE account_id = $1 AND id = $2`,
		accountID, docID, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
