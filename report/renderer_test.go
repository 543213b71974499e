package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/customers"
	"github.com/billhaven/billhaven/internal/money"
)

type stubSnapshots struct{ snap *customers.Snapshot }

func (s stubSnapshots) GetSnapshot(ctx context.Context, id int64) (*customers.Snapshot, error) {
	return s.snap, nil
}

func TestRenderHTMLIncludesDocumentDetails(t *testing.T) {
	email := "billing@acme.example"
	snapID := int64(7)
	number := "INV-2026-0042"
	issued := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	doc := &billing.Document{
		ID:                 1,
		AccountID:          1,
		Kind:               billing.KindInvoice,
		Status:             billing.StatusOpen,
		Currency:           "USD",
		Number:             &number,
		IssuedAt:           &issued,
		CustomerSnapshotID: &snapID,
		Lines: []*billing.DocumentLine{
			{
				Description:         "Consulting",
				UnitAmount:          money.MustFromString("1234.56", "USD"),
				TotalDiscountAmount: money.Zero("USD"),
				TotalTaxAmount:      money.MustFromString("109.56", "USD"),
				TotalAmount:         money.MustFromString("1344.12", "USD"),
			},
		},
		SubtotalAmount:          money.MustFromString("1234.56", "USD"),
		TotalDiscountAmount:     money.Zero("USD"),
		TotalExcludingTaxAmount: money.MustFromString("1234.56", "USD"),
		TotalTaxAmount:          money.MustFromString("109.56", "USD"),
		TotalAmount:             money.MustFromString("1344.12", "USD"),
		TotalCreditAmount:       money.MustFromString("100.00", "USD"),
		TotalPaidAmount:         money.Zero("USD"),
		OutstandingAmount:       money.MustFromString("1244.12", "USD"),
	}
	snap := &customers.Snapshot{ID: snapID, CustomerID: 10, Name: "Acme Corp", Email: &email, Country: "US"}

	r := NewRenderer(nil, stubSnapshots{snap: snap}, nil, nil)
	html, err := r.RenderHTML(context.Background(), doc)
	require.NoError(t, err)

	require.Contains(t, html, "Invoice INV-2026-0042")
	require.Contains(t, html, "Acme Corp")
	require.Contains(t, html, "March 14, 2026")
	require.Contains(t, html, "$1,344.12")
	require.Contains(t, html, "Amount due")
	require.Contains(t, html, "$1,244.12")
}

func TestFormatAmountJoinsSymbolAndDigits(t *testing.T) {
	p := message.NewPrinter(language.English)
	out := formatAmount(p, money.MustFromString("1344.12", "USD"))
	require.Equal(t, "$1,344.12", out)
}

func TestFormatAmountFallsBackForUnknownCurrency(t *testing.T) {
	p := message.NewPrinter(language.English)
	out := formatAmount(p, money.MustFromString("12.34", "ZZZ"))
	require.Equal(t, "12.34 ZZZ", out)
}
