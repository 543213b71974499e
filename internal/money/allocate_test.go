package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func usd(s string) Money { return MustFromString(s, "USD") }

func TestAllocateProportionallyExactSum(t *testing.T) {
	tests := []struct {
		name   string
		total  string
		bases  []string
		shares []string
	}{
		{
			name:   "even_split",
			total:  "100.00",
			bases:  []string{"50.00", "50.00"},
			shares: []string{"50.00", "50.00"},
		},
		{
			name:   "weighted_60_40",
			total:  "100.00",
			bases:  []string{"60.00", "40.00"},
			shares: []string{"60.00", "40.00"},
		},
		{
			name:   "remainder_to_largest_fraction",
			total:  "0.01",
			bases:  []string{"1.00", "2.00"},
			shares: []string{"0.00", "0.01"},
		},
		{
			name:   "three_way_penny",
			total:  "1.00",
			bases:  []string{"1.00", "1.00", "1.00"},
			shares: []string{"0.34", "0.33", "0.33"},
		},
		{
			name:   "uneven_weights",
			total:  "10.00",
			bases:  []string{"3.00", "3.00", "4.00"},
			shares: []string{"3.00", "3.00", "4.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bases := make([]Money, len(tt.bases))
			for i, b := range tt.bases {
				bases[i] = usd(b)
			}
			got := AllocateProportionally(usd(tt.total), bases)
			require.Len(t, got, len(tt.shares))
			for i, want := range tt.shares {
				require.Equal(t, want+" USD", got[i].String(), "share %d", i)
			}
			require.NoError(t, AllocationCheck(usd(tt.total), got))
		})
	}
}

func TestAllocateProportionallyZeroBases(t *testing.T) {
	got := AllocateProportionally(usd("25.00"), []Money{usd("0.00"), usd("0.00")})
	for _, s := range got {
		require.True(t, s.IsZero())
	}
}

func TestAllocateProportionallyEmpty(t *testing.T) {
	got := AllocateProportionally(usd("25.00"), nil)
	require.Empty(t, got)
}

func TestAllocateCapsAtBase(t *testing.T) {
	// Total exceeds combined capacity: each share saturates at its base and
	// the surplus is dropped.
	got := AllocateProportionally(usd("100.00"), []Money{usd("30.00"), usd("20.00")})
	require.Equal(t, "30.00 USD", got[0].String())
	require.Equal(t, "20.00 USD", got[1].String())
}

func TestAllocateKeepsProportionsUnderCapacity(t *testing.T) {
	got := AllocateProportionally(usd("50.00"), []Money{usd("10.00"), usd("90.00")})
	require.Equal(t, "5.00 USD", got[0].String())
	require.Equal(t, "45.00 USD", got[1].String())
	require.NoError(t, AllocationCheck(usd("50.00"), got))
}

func TestAllocateFullCapacityZeroesEveryBase(t *testing.T) {
	// Total equal to the combined bases zeroes out every line exactly.
	got := AllocateProportionally(usd("100.00"), []Money{usd("60.00"), usd("40.00")})
	require.Equal(t, "60.00 USD", got[0].String())
	require.Equal(t, "40.00 USD", got[1].String())
	require.NoError(t, AllocationCheck(usd("100.00"), got))
}

func TestAllocateRoundTripProperty(t *testing.T) {
	totals := []string{"0.01", "0.07", "1.00", "33.33", "99.99", "1234.56"}
	baseSets := [][]string{
		{"1.00", "1.00", "1.00"},
		{"0.01", "0.02", "0.03"},
		{"7.77", "13.13", "0.10", "500.00"},
		{"1000.00", "0.01"},
	}
	for _, total := range totals {
		for _, set := range baseSets {
			bases := make([]Money, len(set))
			var capacity Money = usd("0.00")
			for i, b := range set {
				bases[i] = usd(b)
				capacity = capacity.Add(bases[i])
			}
			if usd(total).Cmp(capacity) > 0 {
				continue
			}
			got := AllocateProportionally(usd(total), bases)
			require.NoError(t, AllocationCheck(usd(total), got), "total=%s bases=%v", total, set)
			for i, s := range got {
				require.True(t, s.Cmp(bases[i]) <= 0, "share %d exceeds base", i)
				require.False(t, s.IsNegative())
			}
		}
	}
}
