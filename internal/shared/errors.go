package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrNotEditable occurs when a mutation targets a finalized document.
	ErrNotEditable = errors.New("document is not editable")
	// ErrInvalidTransition occurs when a lifecycle change is not allowed
	// from the document's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCurrencyMismatch occurs when a coupon, price, or payment carries a
	// currency different from the document's.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrValidation occurs when user input is rejected before any mutation.
	ErrValidation = errors.New("validation failed")
)
