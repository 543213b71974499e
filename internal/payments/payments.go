// Package payments records payment attempts against invoices and integrates
// the external checkout provider.
package payments

import (
	"context"
	"time"

	"github.com/billhaven/billhaven/internal/billing"
	"github.com/billhaven/billhaven/internal/money"
)

// Status is the recorded outcome of a payment attempt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Payment is one recorded attempt, external or manual.
type Payment struct {
	ID            int64       `json:"id"`
	AccountID     int64       `json:"account_id"`
	InvoiceID     int64       `json:"invoice_id"`
	Amount        money.Money `json:"amount"`
	Status        Status      `json:"status"`
	TransactionID *string     `json:"transaction_id,omitempty"`
	CheckoutURL   *string     `json:"checkout_url,omitempty"`
	FailureReason *string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CheckoutResult is returned by a successful checkout initiation.
type CheckoutResult struct {
	TransactionID string `json:"transaction_id"`
	URL           string `json:"url"`
}

// CheckoutProvider initiates external checkout for a finalized invoice.
// Failure never reverts the invoice's transition to OPEN; the outcome is
// recorded either way.
type CheckoutProvider interface {
	Checkout(ctx context.Context, doc *billing.Document) (CheckoutResult, error)
}
