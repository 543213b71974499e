package report

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/customers"
	"github.com/billhaven/billhaven/internal/money"
)

// SnapshotSource resolves the customer snapshot a finalized document froze.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, id int64) (*customers.Snapshot, error)
}

// FileStore persists rendered PDFs and returns an opaque reference.
type FileStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// DiskStore writes PDFs under a base directory.
type DiskStore struct {
	Dir string
}

// Save writes the file under a collision-free name and returns its path.
func (d DiskStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	ref := filepath.Join(d.Dir, uuid.NewString()+"-"+name)
	if err := os.WriteFile(ref, data, 0o644); err != nil {
		return "", err
	}
	return ref, nil
}

// Renderer turns finalized documents into stored PDFs.
type Renderer struct {
	repo      billing.Repository
	snapshots SnapshotSource
	client    *Client
	files     FileStore
	printer   *message.Printer
}

// NewRenderer constructs a Renderer.
func NewRenderer(repo billing.Repository, snapshots SnapshotSource, client *Client, files FileStore) *Renderer {
	return &Renderer{
		repo:      repo,
		snapshots: snapshots,
		client:    client,
		files:     files,
		printer:   message.NewPrinter(language.English),
	}
}

// RenderDocument renders the document to PDF, stores it, and records the
// reference on the document.
func (r *Renderer) RenderDocument(ctx context.Context, kind billing.DocumentKind, accountID, docID int64) (string, error) {
	doc, err := r.repo.GetDocument(ctx, accountID, docID, kind, false)
	if err != nil {
		return "", err
	}
	html, err := r.RenderHTML(ctx, doc)
	if err != nil {
		return "", err
	}
	pdf, err := r.client.RenderHTML(ctx, html)
	if err != nil {
		return "", fmt.Errorf("report: render %s %d: %w", kind, docID, err)
	}
	name := fmt.Sprintf("%s-%d.pdf", strings.ToLower(string(kind)), docID)
	ref, err := r.files.Save(ctx, name, pdf)
	if err != nil {
		return "", err
	}
	if err := r.repo.SetPDFFileRef(ctx, accountID, docID, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// RenderHTML builds the document HTML without converting it.
func (r *Renderer) RenderHTML(ctx context.Context, doc *billing.Document) (string, error) {
	var snap *customers.Snapshot
	if doc.CustomerSnapshotID != nil {
		var err error
		snap, err = r.snapshots.GetSnapshot(ctx, *doc.CustomerSnapshotID)
		if err != nil {
			return "", err
		}
	}

	data := buildTemplateData(doc, snap, r.printer)
	var b strings.Builder
	if err := documentTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func kindTitle(kind billing.DocumentKind) string {
	switch kind {
	case billing.KindCreditNote:
		return "Credit Note"
	case billing.KindQuote:
		return "Quote"
	default:
		return "Invoice"
	}
}

// formatAmount renders "$1,234.56" when the currency is recognised, falling
// back to the plain "1234.56 USD" form. x/text separates the symbol from the
// digits with a space; invoices drop it.
func formatAmount(p *message.Printer, m money.Money) string {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return m.String()
	}
	f, _ := m.Amount.Float64()
	s := p.Sprint(currency.Symbol(unit.Amount(f)))
	return strings.Replace(s, " ", "", 1)
}

type templateLine struct {
	Description string
	Quantity    string
	UnitAmount  string
	Discount    string
	Tax         string
	Total       string
}

type templateData struct {
	Title    string
	Number   string
	IssuedAt string
	DueAt    string
	Customer *customers.Snapshot

	Lines []templateLine

	Shipping          string
	Subtotal          string
	TotalDiscount     string
	TotalExcludingTax string
	TotalTax          string
	Total             string

	ShowCredit  bool
	TotalCredit string
	Outstanding string
}

func buildTemplateData(doc *billing.Document, snap *customers.Snapshot, p *message.Printer) templateData {
	data := templateData{
		Title:             kindTitle(doc.Kind),
		Customer:          snap,
		Subtotal:          formatAmount(p, doc.SubtotalAmount),
		TotalDiscount:     formatAmount(p, doc.TotalDiscountAmount),
		TotalExcludingTax: formatAmount(p, doc.TotalExcludingTaxAmount),
		TotalTax:          formatAmount(p, doc.TotalTaxAmount),
		Total:             formatAmount(p, doc.TotalAmount),
	}
	if doc.Number != nil {
		data.Number = *doc.Number
	}
	if doc.IssuedAt != nil {
		data.IssuedAt = doc.IssuedAt.Format("January 2, 2006")
	}
	if doc.DueAt != nil {
		data.DueAt = doc.DueAt.Format("January 2, 2006")
	}
	if doc.Shipping != nil {
		data.Shipping = formatAmount(p, doc.Shipping.TotalAmount)
	}
	if doc.Kind == billing.KindInvoice && !doc.TotalCreditAmount.IsZero() {
		data.ShowCredit = true
		data.TotalCredit = formatAmount(p, doc.TotalCreditAmount)
		data.Outstanding = formatAmount(p, doc.OutstandingAmount)
	}
	for _, l := range doc.Lines {
		line := templateLine{
			Description: l.Description,
			UnitAmount:  formatAmount(p, l.UnitAmount),
			Discount:    formatAmount(p, l.TotalDiscountAmount),
			Tax:         formatAmount(p, l.TotalTaxAmount),
			Total:       formatAmount(p, l.TotalAmount),
		}
		if l.Quantity != nil {
			line.Quantity = l.Quantity.String()
		}
		data.Lines = append(data.Lines, line)
	}
	return data
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; color: #1a1a2e; margin: 48px; }
h1 { font-size: 28px; margin-bottom: 0; }
.meta { color: #555; margin-bottom: 32px; }
table { width: 100%; border-collapse: collapse; margin-top: 24px; }
th { text-align: left; border-bottom: 2px solid #1a1a2e; padding: 8px 4px; }
td { border-bottom: 1px solid #ddd; padding: 8px 4px; }
.totals { margin-top: 24px; width: 40%; margin-left: auto; }
.totals td { border: none; padding: 4px; }
.totals .grand { font-weight: bold; border-top: 2px solid #1a1a2e; }
</style>
</head>
<body>
<h1>{{.Title}} {{.Number}}</h1>
<div class="meta">
{{if .IssuedAt}}<div>Issued: {{.IssuedAt}}</div>{{end}}
{{if .DueAt}}<div>Due: {{.DueAt}}</div>{{end}}
</div>
{{with .Customer}}
<div class="customer">
<strong>{{.Name}}</strong><br>
{{if .AddressLine1}}{{.AddressLine1}}<br>{{end}}
{{if .AddressLine2}}{{.AddressLine2}}<br>{{end}}
{{if .City}}{{.City}} {{if .PostalCode}}{{.PostalCode}}{{end}}<br>{{end}}
{{.Country}}
{{if .TaxNumber}}<br>Tax No: {{.TaxNumber}}{{end}}
</div>
{{end}}
<table>
<tr><th>Description</th><th>Qty</th><th>Unit</th><th>Discount</th><th>Tax</th><th>Total</th></tr>
{{range .Lines}}
<tr><td>{{.Description}}</td><td>{{.Quantity}}</td><td>{{.UnitAmount}}</td><td>{{.Discount}}</td><td>{{.Tax}}</td><td>{{.Total}}</td></tr>
{{end}}
</table>
<table class="totals">
<tr><td>Subtotal</td><td>{{.Subtotal}}</td></tr>
<tr><td>Discount</td><td>{{.TotalDiscount}}</td></tr>
{{if .Shipping}}<tr><td>Shipping</td><td>{{.Shipping}}</td></tr>{{end}}
<tr><td>Total excl. tax</td><td>{{.TotalExcludingTax}}</td></tr>
<tr><td>Tax</td><td>{{.TotalTax}}</td></tr>
<tr class="grand"><td>Total</td><td>{{.Total}}</td></tr>
{{if .ShowCredit}}
<tr><td>Credited</td><td>{{.TotalCredit}}</td></tr>
<tr class="grand"><td>Amount due</td><td>{{.Outstanding}}</td></tr>
{{end}}
</table>
</body>
</html>`))
