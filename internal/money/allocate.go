package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var centFactor = decimal.New(1, Precision)

// AllocateProportionally splits total across the given bases so that the
// results sum to total exactly. Shares are proportional to each base's weight,
// rounded to minor-unit precision with the largest-remainder method: shares
// are floored to whole minor units and leftover units go to the bases with the
// largest truncated remainder, earliest index winning ties.
//
// Each share is additionally capped at its base. Excess freed by capping is
// redistributed across the uncapped bases; once every base is saturated any
// surplus is dropped, so the exact-sum guarantee holds only up to the combined
// capacity of the bases.
//
// A zero base sum yields all-zero shares.
func AllocateProportionally(total Money, bases []Money) []Money {
	shares := make([]Money, len(bases))
	for i := range shares {
		shares[i] = Zero(total.Currency)
	}
	if len(bases) == 0 {
		return shares
	}

	baseSum := decimal.Zero
	for _, b := range bases {
		total.mustMatch(b)
		baseSum = baseSum.Add(b.Amount)
	}
	if baseSum.IsZero() {
		return shares
	}

	remaining := total.Amount.Mul(centFactor)
	saturated := make([]bool, len(bases))
	cents := make([]decimal.Decimal, len(bases))

	// Redistribution loop: allocate what remains over the bases that still
	// have capacity, capping each round, until nothing is left to move.
	for !remaining.IsZero() {
		var openSum decimal.Decimal
		for i, b := range bases {
			if !saturated[i] {
				openSum = openSum.Add(b.Amount)
			}
		}
		if openSum.IsZero() {
			break // every base saturated: surplus is dropped
		}

		round := distributeCents(remaining, bases, saturated, openSum)
		moved := decimal.Zero
		for i := range bases {
			if saturated[i] {
				continue
			}
			capacity := bases[i].Amount.Mul(centFactor).Sub(cents[i])
			grant := round[i]
			if grant.Cmp(capacity) >= 0 {
				grant = capacity
				saturated[i] = true
			}
			cents[i] = cents[i].Add(grant)
			moved = moved.Add(grant)
		}
		if moved.IsZero() {
			break
		}
		remaining = remaining.Sub(moved)
	}

	for i := range shares {
		shares[i] = Money{Amount: cents[i].Div(centFactor), Currency: total.Currency}
	}
	return shares
}

// distributeCents performs one largest-remainder split of totalCents across
// the non-saturated bases, weighted by openSum.
func distributeCents(totalCents decimal.Decimal, bases []Money, saturated []bool, openSum decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bases))
	type rem struct {
		idx  int
		frac decimal.Decimal
	}
	var rems []rem
	assigned := decimal.Zero

	for i, b := range bases {
		if saturated[i] {
			out[i] = decimal.Zero
			continue
		}
		raw := totalCents.Mul(b.Amount).Div(openSum)
		fl := raw.Floor()
		out[i] = fl
		assigned = assigned.Add(fl)
		rems = append(rems, rem{idx: i, frac: raw.Sub(fl)})
	}

	// Hand out leftover minor units to the largest remainders, earliest index
	// winning ties.
	leftover := totalCents.Sub(assigned)
	for leftover.IsPositive() {
		best := -1
		for j, r := range rems {
			if best == -1 || r.frac.Cmp(rems[best].frac) > 0 {
				best = j
			}
		}
		if best == -1 {
			break
		}
		out[rems[best].idx] = out[rems[best].idx].Add(decimal.NewFromInt(1))
		rems[best].frac = decimal.NewFromInt(-1)
		leftover = leftover.Sub(decimal.NewFromInt(1))
	}
	return out
}

// AllocationCheck verifies the exact-sum invariant, returning an error naming
// the discrepancy. Used by tests and recalculation assertions.
func AllocationCheck(total Money, shares []Money) error {
	sum := Zero(total.Currency)
	for _, s := range shares {
		sum = sum.Add(s)
	}
	if !sum.Equal(total) {
		return fmt.Errorf("money: allocation mismatch: shares sum %s, want %s", sum, total)
	}
	return nil
}
