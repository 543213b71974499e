// Package numbering assigns human-readable document numbers from
// account-configurable patterns with periodic sequence resets.
package numbering

import (
	"fmt"
	"strings"
	"time"
)

// ResetFrequency controls when the sequence counter restarts.
type ResetFrequency string

const (
	ResetNever   ResetFrequency = "NEVER"
	ResetDaily   ResetFrequency = "DAILY"
	ResetMonthly ResetFrequency = "MONTHLY"
	ResetYearly  ResetFrequency = "YEARLY"
)

// System is one numbering scheme owned by an account. Pattern tokens:
// {YYYY}, {YY}, {MM}, {DD} expand from the effective date, {SEQ} expands
// to the zero-padded sequence position within the current period.
type System struct {
	ID        int64          `json:"id"`
	AccountID int64          `json:"account_id"`
	Name      string         `json:"name"`
	Pattern   string         `json:"pattern"`
	Padding   int            `json:"padding"`
	Reset     ResetFrequency `json:"reset_frequency"`
	CreatedAt time.Time      `json:"created_at"`
}

// DefaultPadding applies when a system leaves Padding unset.
const DefaultPadding = 4

// CalculateBounds returns the half-open period [start, end) containing
// effectiveAt under the system's reset frequency. A system that never
// resets spans all time.
func (s System) CalculateBounds(effectiveAt time.Time) (time.Time, time.Time) {
	t := effectiveAt.UTC()
	switch s.Reset {
	case ResetDaily:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	case ResetMonthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	case ResetYearly:
		start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	default:
		return time.Time{}, time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	}
}

// RenderNumber expands the pattern for the document at the given position
// within its period. count is 1-based.
func (s System) RenderNumber(count int64, effectiveAt time.Time) string {
	t := effectiveAt.UTC()
	padding := s.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	r := strings.NewReplacer(
		"{YYYY}", t.Format("2006"),
		"{YY}", t.Format("06"),
		"{MM}", t.Format("01"),
		"{DD}", t.Format("02"),
		"{SEQ}", fmt.Sprintf("%0*d", padding, count),
	)
	return r.Replace(s.Pattern)
}

// Validate rejects patterns that cannot produce unique numbers.
func (s System) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("numbering: name required")
	}
	if !strings.Contains(s.Pattern, "{SEQ}") {
		return fmt.Errorf("numbering: pattern must contain {SEQ}")
	}
	switch s.Reset {
	case ResetNever, ResetDaily, ResetMonthly, ResetYearly:
		return nil
	default:
		return fmt.Errorf("numbering: unknown reset frequency %q", s.Reset)
	}
}
