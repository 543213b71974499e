package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/billhaven/billhaven/internal/billing"
)

// HTTPProvider talks to the configured checkout gateway over JSON.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPProvider constructs a provider client.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type checkoutRequest struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

// Checkout initiates a checkout session for the invoice's outstanding amount.
func (p *HTTPProvider) Checkout(ctx context.Context, doc *billing.Document) (CheckoutResult, error) {
	payload, err := json.Marshal(checkoutRequest{
		Reference: fmt.Sprintf("invoice-%d", doc.ID),
		Amount:    doc.OutstandingAmount.Amount.StringFixed(2),
		Currency:  doc.Currency,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/checkouts", p.baseURL), bytes.NewReader(payload))
	if err != nil {
		return CheckoutResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return CheckoutResult{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return CheckoutResult{}, fmt.Errorf("checkout provider returned status %d", resp.StatusCode)
	}

	var result CheckoutResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CheckoutResult{}, err
	}
	return result, nil
}
