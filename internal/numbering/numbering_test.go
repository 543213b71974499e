package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateBounds(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	s := System{Reset: ResetMonthly}
	start, end := s.CalculateBounds(at)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), end)

	s.Reset = ResetYearly
	start, end = s.CalculateBounds(at)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), end)

	s.Reset = ResetDaily
	start, end = s.CalculateBounds(at)
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), end)

	s.Reset = ResetNever
	start, end = s.CalculateBounds(at)
	require.True(t, start.IsZero())
	require.True(t, end.After(at))
}

func TestRenderNumber(t *testing.T) {
	at := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	s := System{Pattern: "INV-{YYYY}-{SEQ}"}
	require.Equal(t, "INV-2026-0007", s.RenderNumber(7, at))

	s = System{Pattern: "CN-{YY}{MM}-{SEQ}", Padding: 3}
	require.Equal(t, "CN-2603-042", s.RenderNumber(42, at))

	s = System{Pattern: "{YYYY}{MM}{DD}/{SEQ}", Padding: 1}
	require.Equal(t, "20260305/12", s.RenderNumber(12, at))
}

func TestValidate(t *testing.T) {
	ok := System{Name: "default", Pattern: "INV-{SEQ}", Reset: ResetYearly}
	require.NoError(t, ok.Validate())

	noSeq := System{Name: "bad", Pattern: "INV-{YYYY}", Reset: ResetNever}
	require.Error(t, noSeq.Validate())

	badReset := System{Name: "bad", Pattern: "{SEQ}", Reset: "WEEKLY"}
	require.Error(t, badReset.Validate())
}
