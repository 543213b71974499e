// Package billingtest provides an in-memory billing.Repository for service
// tests.
package billingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/shared"
)

// MemoryRepository keeps documents in a map. InTx runs the callback against
// the same repository; tests exercise service logic, not isolation.
type MemoryRepository struct {
	mu       sync.Mutex
	nextDoc  int64
	nextLine int64
	Docs     map[int64]*billing.Document
	Coupons  map[int64]billing.Coupon
	TaxRates map[int64]billing.TaxRate
	Heads    map[int64]int64
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		Docs:     make(map[int64]*billing.Document),
		Coupons:  make(map[int64]billing.Coupon),
		TaxRates: make(map[int64]billing.TaxRate),
		Heads:    make(map[int64]int64),
	}
}

// AddCoupon seeds a catalog coupon and returns its id.
func (m *MemoryRepository) AddCoupon(c billing.Coupon) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.Coupons) + 1)
	c.ID = id
	m.Coupons[id] = c
	return id
}

// AddTaxRate seeds a catalog tax rate and returns its id.
func (m *MemoryRepository) AddTaxRate(t billing.TaxRate) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.TaxRates) + 1)
	t.ID = id
	m.TaxRates[id] = t
	return id
}

func (m *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context, r billing.Repository) error) error {
	return fn(ctx, m)
}

func (m *MemoryRepository) CreateDocument(ctx context.Context, doc *billing.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDoc++
	doc.ID = m.nextDoc
	m.assignLineIDs(doc)
	m.Docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (m *MemoryRepository) assignLineIDs(doc *billing.Document) {
	for _, l := range doc.Lines {
		if l.ID == 0 {
			m.nextLine++
			l.ID = m.nextLine
		}
	}
}

func (m *MemoryRepository) GetDocument(ctx context.Context, accountID, id int64, kind billing.DocumentKind, forUpdate bool) (*billing.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Docs[id]
	if !ok || doc.AccountID != accountID || doc.Kind != kind {
		return nil, shared.ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (m *MemoryRepository) SaveDocument(ctx context.Context, doc *billing.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Docs[doc.ID]; !ok {
		return shared.ErrNotFound
	}
	m.assignLineIDs(doc)
	m.Docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (m *MemoryRepository) DeleteDocument(ctx context.Context, accountID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Docs[id]
	if !ok || doc.AccountID != accountID {
		return shared.ErrNotFound
	}
	delete(m.Docs, id)
	return nil
}

func (m *MemoryRepository) ListDocuments(ctx context.Context, accountID int64, kind billing.DocumentKind, status billing.DocumentStatus, page, perPage int) ([]*billing.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.Document
	for _, doc := range m.Docs {
		if doc.AccountID != accountID || doc.Kind != kind {
			continue
		}
		if status != "" && doc.Status != status {
			continue
		}
		out = append(out, cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *MemoryRepository) GetCoupon(ctx context.Context, accountID, id int64) (billing.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Coupons[id]
	if !ok {
		return billing.Coupon{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *MemoryRepository) GetTaxRate(ctx context.Context, accountID, id int64) (billing.TaxRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.TaxRates[id]
	if !ok {
		return billing.TaxRate{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *MemoryRepository) GetHead(ctx context.Context, rootID int64) (billing.InvoiceHead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.Heads[rootID]
	if !ok {
		return billing.InvoiceHead{}, shared.ErrNotFound
	}
	return billing.InvoiceHead{RootInvoiceID: rootID, CurrentInvoiceID: current}, nil
}

func (m *MemoryRepository) UpsertHead(ctx context.Context, rootID, currentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Heads[rootID] = currentID
	return nil
}

func (m *MemoryRepository) ListRevisions(ctx context.Context, accountID, rootID int64) ([]*billing.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.Document
	for _, doc := range m.Docs {
		if doc.AccountID != accountID || doc.Kind != billing.KindInvoice {
			continue
		}
		if doc.ID == rootID || (doc.RootInvoiceID != nil && *doc.RootInvoiceID == rootID) {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) HasRevisionAfter(ctx context.Context, previousID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.Docs {
		if doc.PreviousRevisionID != nil && *doc.PreviousRevisionID == previousID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) GetDraftCreditNoteForInvoice(ctx context.Context, accountID, invoiceID int64) (*billing.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.Docs {
		if doc.AccountID == accountID && doc.Kind == billing.KindCreditNote &&
			doc.InvoiceID != nil && *doc.InvoiceID == invoiceID && doc.Status == billing.StatusDraft {
			return cloneDocument(doc), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *MemoryRepository) ListCreditNotesForInvoice(ctx context.Context, accountID, invoiceID int64) ([]*billing.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.Document
	for _, doc := range m.Docs {
		if doc.AccountID == accountID && doc.Kind == billing.KindCreditNote &&
			doc.InvoiceID != nil && *doc.InvoiceID == invoiceID {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) CountInNumberingPeriod(ctx context.Context, accountID, systemID int64, kind billing.DocumentKind, start, end time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, doc := range m.Docs {
		if doc.AccountID != accountID || doc.Kind != kind || doc.Number == nil {
			continue
		}
		if doc.NumberingSystemID == nil || *doc.NumberingSystemID != systemID {
			continue
		}
		if doc.IssuedAt != nil && !doc.IssuedAt.Before(start) && doc.IssuedAt.Before(end) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) SetPDFFileRef(ctx context.Context, accountID, docID int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Docs[docID]
	if !ok || doc.AccountID != accountID {
		return shared.ErrNotFound
	}
	doc.PDFFileRef = &ref
	return nil
}

func cloneDocument(src *billing.Document) *billing.Document {
	doc := *src
	doc.Lines = nil
	for _, l := range src.Lines {
		line := *l
		line.Coupons = append([]billing.Coupon(nil), l.Coupons...)
		line.TaxRates = append([]billing.TaxRate(nil), l.TaxRates...)
		line.DiscountAllocations = append([]billing.DiscountAllocation(nil), l.DiscountAllocations...)
		line.TaxAllocations = append([]billing.TaxAllocation(nil), l.TaxAllocations...)
		doc.Lines = append(doc.Lines, &line)
	}
	doc.Coupons = append([]billing.Coupon(nil), src.Coupons...)
	doc.TaxRates = append([]billing.TaxRate(nil), src.TaxRates...)
	doc.DiscountAllocations = append([]billing.DiscountAllocation(nil), src.DiscountAllocations...)
	doc.TaxAllocations = append([]billing.TaxAllocation(nil), src.TaxAllocations...)
	if src.Shipping != nil {
		shipping := *src.Shipping
		shipping.TaxAllocations = append([]billing.TaxAllocation(nil), src.Shipping.TaxAllocations...)
		doc.Shipping = &shipping
	}
	return &doc
}
