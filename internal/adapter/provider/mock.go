package provider

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// MockProvider simulates the payment rail for local runs and tests, with
// configurable latency and failure rate.
type MockProvider struct {
	latency     time.Duration
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockProvider creates a mock provider. failureRate is the probability
// in [0,1] that a payment is rejected; seed makes the failure sequence
// reproducible.
func NewMockProvider(latency time.Duration, failureRate float64, seed int64) *MockProvider {
	return &MockProvider{
		latency:     latency,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Pay simulates one rail payment
func (p *MockProvider) Pay(ctx context.Context, tx *domain.DisbursementTransaction) (*domain.PaymentResult, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if tx.Amount.Sign() <= 0 {
		return &domain.PaymentResult{Success: false, Error: "amount must be positive"}, nil
	}

	p.mu.Lock()
	rejected := p.rng.Float64() < p.failureRate
	p.mu.Unlock()

	if rejected {
		return &domain.PaymentResult{Success: false, Error: "simulated rail rejection"}, nil
	}

	return &domain.PaymentResult{
		Success:      true,
		ProviderTxID: fmt.Sprintf("mock-%s", uuid.New().String()[:13]),
	}, nil
}
