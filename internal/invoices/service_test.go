package invoices

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

func exclusive(string) billing.TaxBehavior { return billing.TaxExclusive }

func newTestService(repo *billingtest.MemoryRepository) *Service {
	return NewService(Deps{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Repo:      repo,
		Snapshots: &stubSnapshots{},
		Numbering: stubNumbering{systems: map[int64]numbering.System{
			1: {ID: 1, AccountID: testAccount, Name: "Invoices", Pattern: "INV-{YYYY}-{SEQ}", Padding: 4, Reset: numbering.ResetYearly},
		}},
		Behavior: exclusive,
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

func TestFinalizeAssignsNumberAndDueDate(t *testing.T) {
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
	addLine(t, svc, draft.ID, "100.00")

	inv, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusOpen, inv.Status)
	require.NotNil(t, inv.Number)
	year := time.Now().UTC().Format("2006")
	require.Equal(t, "INV-"+year+"-0001", *inv.Number)
	require.NotNil(t, inv.IssuedAt)
	require.NotNil(t, inv.DueAt)
	require.WithinDuration(t, inv.IssuedAt.AddDate(0, 0, DefaultDueDays), *inv.DueAt, time.Second)
	require.NotNil(t, inv.CustomerSnapshotID)

	// Second finalized invoice in the same period takes the next sequence.
	draft2, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{
		CustomerID: 10, Currency: "USD", NumberingSystemID: &sysID,
	})
	require.NoError(t, err)
	addLine(t, svc, draft2.ID, "50.00")
	inv2, err := svc.Finalize(ctx, testAccount, draft2.ID)
	require.NoError(t, err)
	require.Equal(t, "INV-"+year+"-0002", *inv2.Number)
}

func TestFinalizeEmptyDraftGoesStraightToPaid(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)

	inv, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	require.True(t, inv.OutstandingAmount.IsZero())
	require.Equal(t, inv.ID, repo.Heads[inv.ID])
}

func TestFinalizeRejectsNonDraft(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "100.00")
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
	addLine(t, svc, draft.ID, "100.00")
	inv, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	err = svc.DeleteDraft(ctx, testAccount, inv.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

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

	addLine(t, svc, draft.ID, "100.00")
	_, err = svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	voided, err := svc.Void(ctx, testAccount, draft.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedAt)
}

func TestReviseCreatesLinkedDraft(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "100.00")
	src, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	rev, err := svc.Revise(ctx, testAccount, src.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusDraft, rev.Status)
	require.NotNil(t, rev.RootInvoiceID)
	require.Equal(t, src.ID, *rev.RootInvoiceID)
	require.NotNil(t, rev.PreviousRevisionID)
	require.Equal(t, src.ID, *rev.PreviousRevisionID)
	require.Len(t, rev.Lines, 1)
	require.Equal(t, "100.00 USD", rev.Lines[0].UnitAmount.String())
	require.Nil(t, rev.Number)
}

func TestReviseKeepsChainLinear(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "100.00")
	src, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	_, err = svc.Revise(ctx, testAccount, src.ID)
	require.NoError(t, err)
	_, err = svc.Revise(ctx, testAccount, src.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestFinalizeRevisionVoidsPreviousAndMovesHead(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{CustomerID: 10, Currency: "USD"})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "100.00")
	src, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)

	rev, err := svc.Revise(ctx, testAccount, src.ID)
	require.NoError(t, err)
	addLine(t, svc, rev.ID, "25.00")
	finalized, err := svc.Finalize(ctx, testAccount, rev.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusOpen, finalized.Status)
	require.Equal(t, "125.00 USD", finalized.TotalAmount.String())

	prev, err := svc.Get(ctx, testAccount, src.ID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusVoided, prev.Status)
	require.Equal(t, finalized.ID, repo.Heads[src.ID])

	chain, err := svc.ListRevisions(ctx, testAccount, finalized.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, src.ID, chain[0].ID)
	require.Equal(t, finalized.ID, chain[1].ID)
}

func TestCreateDraftManualNumber(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	manual := "LEGACY-0099"
	sysID := int64(1)
	_, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{
		CustomerID: 10, Currency: "USD", Number: &manual, NumberingSystemID: &sysID,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	draft, err := svc.CreateDraft(ctx, testAccount, CreateDraftRequest{
		CustomerID: 10, Currency: "USD", Number: &manual,
	})
	require.NoError(t, err)
	addLine(t, svc, draft.ID, "100.00")

	inv, err := svc.Finalize(ctx, testAccount, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, inv.Number)
	require.Equal(t, manual, *inv.Number)
}
