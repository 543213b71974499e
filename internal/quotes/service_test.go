package quotes

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/billing/billingtest"
	"github.com/billhaven/billhaven/internal/customers"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/numbering"
	"github.com/billhaven/billhaven/internal/shared"
)

const testAccount = int64(1)

type stubSnapshots struct{ nextID int64 }

func (s *stubSnapshots) Snapshot(ctx context.Context, accountID, customerID int64) (*customers.Snapshot, error) {
	s.nextID++
	return &customers.Snapshot{ID: s.nextID, CustomerID: customerID, Name: "Acme Corp", Country: "US"}, nil
}

type stubNumbering struct{ systems map[int64]numbering.System }

func (s stubNumbering) GetByID(ctx context.Context, accountID, id int64) (numbering.System, error) {
	sys, ok := s.systems[id]
	if !ok {
		return numbering.System{}, shared.ErrNotFound
	}
	return sys, nil
}

func newTestService(repo *billingtest.MemoryRepository) *Service {
	return NewService(Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Repo:   repo,
		Snapshots: &stubSnapshots{},
		Numbering: stubNumbering{systems: map[int64]numbering.System{
			1: {ID: 1, AccountID: testAccount, Name: "Quotes", Pattern: "Q-{YYYY}-{SEQ}", Padding: 3, Reset: numbering.ResetYearly},
		}},
		Behavior: func(string) billing.TaxBehavior { return billing.TaxExclusive },
	})
}

func addLine(t *testing.T, svc *Service, id int64, amount string) *billing.Document {
	t.Helper()
	unit := money.MustFromString(amount, "USD")
	qty := decimal.NewFromInt(1)
	doc, err := svc.Editor().AddLine(context.Background(), testAccount, id, billing.LineInput{
		Description: "Consulting",
		Quantity:    &qty,
		UnitAmount:  &unit,
	})
	require.NoError(t, err)
	return doc
}

func TestFinalizeAssignsNumberAndSnapshot(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	sysID := int64(1)
	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{
		CustomerID:        10,
		Currency:          "USD",
		NumberingSystemID: &sysID,
	})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "250.00")

	quote, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusOpen, quote.Status)
	require.NotNil(t, quote.Number)
	year := time.Now().UTC().Format("2006")
	require.Equal(t, "Q-"+year+"-001", *quote.Number)
	require.NotNil(t, quote.IssuedAt)
	require.NotNil(t, quote.CustomerSnapshotID)
	require.Equal(t, "250.00", quote.TotalAmount.Amount.StringFixed(2))
}

func TestFinalizeRejectsNonDraft(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "10.00")
	_, err = svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, testAccount, draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestDeleteDraftOnly(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "10.00")
	open, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteDraft(ctx, testAccount, open.ID), shared.ErrInvalidTransition)

	draft2, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDraft(ctx, testAccount, draft2.ID))
	_, err = svc.Get(ctx, testAccount, draft2.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVoidRequiresOpen(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.Void(ctx, testAccount, draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	addLine(t, svc, draft.ID, "10.00")
	open, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	voided, err := svc.Void(ctx, testAccount, open.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedAt)
}

func TestQuoteRejectsShipping(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)

	_, err = svc.Editor().SetShipping(ctx, testAccount, draft.ID, &billing.Shipping{
		Description: "Ground",
		Amount:      money.MustFromString("5.00", "USD"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
