package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tradealerts/payout-backend/internal/domain"
)

// Config holds the payment rail endpoint settings
type Config struct {
	Name     string
	Endpoint string
	APIKey   string
}

// HTTPProvider submits payments to the rail's REST API. Each submission
// carries the transaction's provider reference as idempotency key, so a
// repeated submission of the same transaction cannot double-pay.
type HTTPProvider struct {
	config     Config
	httpClient *http.Client
}

// NewHTTPProvider creates a new HTTP rail provider
func NewHTTPProvider(config Config, client *http.Client) *HTTPProvider {
	return &HTTPProvider{config: config, httpClient: client}
}

// Name returns the provider name
func (p *HTTPProvider) Name() string {
	return p.config.Name
}

type payRequest struct {
	Reference   string `json:"reference"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type payResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// Pay submits one payment. Transport-level problems and provider outages
// are returned as errors; an explicit rejection by the rail is a result
// with Success=false.
func (p *HTTPProvider) Pay(ctx context.Context, tx *domain.DisbursementTransaction) (*domain.PaymentResult, error) {
	body, err := json.Marshal(payRequest{
		Reference:   tx.ProviderRef,
		Destination: tx.PayeeAccount,
		Amount:      tx.Amount.String(),
		Currency:    tx.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Idempotency-Key", tx.ProviderRef)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach payment rail: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rail response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("payment rail unavailable: status %d", resp.StatusCode)
	}

	var parsed payResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rail response: %w", err)
	}

	switch parsed.Status {
	case "CONFIRMED":
		if parsed.TransactionID == "" {
			return nil, fmt.Errorf("rail confirmed payment without a transaction id")
		}
		return &domain.PaymentResult{Success: true, ProviderTxID: parsed.TransactionID}, nil
	case "REJECTED":
		reason := parsed.Reason
		if reason == "" {
			reason = "payment rejected by rail"
		}
		return &domain.PaymentResult{Success: false, Error: reason}, nil
	default:
		return nil, fmt.Errorf("unexpected rail payment status %q", parsed.Status)
	}
}
