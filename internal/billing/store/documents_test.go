package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/money"
	"github.com/billhaven/billhaven/internal/shared"
)

var errRecorded = errors.New("recorded")

type sqlCall struct {
	sql  string
	args []any
}

// recordingQuerier captures every statement without a database. QueryRow
// satisfies single-destination id scans; everything else aborts with
// errRecorded so tests can assert on the captured SQL and arguments.
type recordingQuerier struct {
	calls    []sqlCall
	execTags []pgconn.CommandTag
}

func (r *recordingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.calls = append(r.calls, sqlCall{sql: sql, args: args})
	if len(r.execTags) > 0 {
		tag := r.execTags[0]
		r.execTags = r.execTags[1:]
		return tag, nil
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (r *recordingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.calls = append(r.calls, sqlCall{sql: sql, args: args})
	return nil, errRecorded
}

func (r *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	r.calls = append(r.calls, sqlCall{sql: sql, args: args})
	return idRow{}
}

type idRow struct{}

func (idRow) Scan(dest ...any) error {
	if len(dest) == 1 {
		if p, ok := dest[0].(*int64); ok {
			*p = 1
			return nil
		}
	}
	return errRecorded
}

func jsonArgContaining(args []any, substr string) bool {
	for _, a := range args {
		if b, ok := a.([]byte); ok && strings.Contains(string(b), substr) {
			return true
		}
	}
	return false
}

func TestCreateDocumentPersistsAllocations(t *testing.T) {
	coupon := billing.Coupon{ID: 5, Name: "Launch", Kind: billing.CouponFixed, Amount: money.MustFromString("40.00", "USD")}
	alloc := billing.DiscountAllocation{Coupon: coupon, Source: billing.SourceDocument, Amount: money.MustFromString("40.00", "USD")}
	doc := &billing.Document{
		AccountID:           1,
		Kind:                billing.KindInvoice,
		Status:              billing.StatusDraft,
		Currency:            "USD",
		CustomerID:          10,
		Coupons:             []billing.Coupon{coupon},
		DiscountAllocations: []billing.DiscountAllocation{alloc},
		Lines: []*billing.DocumentLine{{
			UnitAmount:          money.MustFromString("100.00", "USD"),
			DiscountAllocations: []billing.DiscountAllocation{alloc},
		}},
	}

	q := &recordingQuerier{}
	require.NoError(t, New(nil).CreateDocument(context.Background(), q, doc))
	require.Len(t, q.calls, 2)

	require.Contains(t, q.calls[0].sql, "discount_allocations")
	require.True(t, jsonArgContaining(q.calls[0].args, `"source":"DOCUMENT"`))
	require.True(t, jsonArgContaining(q.calls[1].args, `"source":"DOCUMENT"`))
}

func TestGetDocumentSelectsAllocations(t *testing.T) {
	q := &recordingQuerier{}
	_, err := New(nil).GetDocument(context.Background(), q, 1, 2, billing.KindInvoice, false)
	require.Error(t, err)
	require.Contains(t, q.calls[0].sql, "discount_allocations, tax_allocations")
}

func TestLoadLinesSelectsAllocations(t *testing.T) {
	q := &recordingQuerier{}
	_, err := New(nil).loadLines(context.Background(), q, 1, "USD")
	require.ErrorIs(t, err, errRecorded)
	require.Contains(t, q.calls[0].sql, "discount_allocations, tax_allocations")
}

func TestDeleteDocumentScopesLineDeleteToAccount(t *testing.T) {
	q := &recordingQuerier{}
	require.NoError(t, New(nil).DeleteDocument(context.Background(), q, 1, 2))
	require.Len(t, q.calls, 2)
	require.Contains(t, q.calls[0].sql, "d.account_id = $1")
	require.Equal(t, []any{int64(1), int64(2)}, q.calls[0].args)
}

func TestDeleteDocumentNotFound(t *testing.T) {
	q := &recordingQuerier{execTags: []pgconn.CommandTag{
		pgconn.NewCommandTag("DELETE 0"),
		pgconn.NewCommandTag("DELETE 0"),
	}}
	err := New(nil).DeleteDocument(context.Background(), q, 1, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
