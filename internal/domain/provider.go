package domain

import "context"

// PaymentResult is the outcome of a single payment submitted to the rail.
// Success=false with an empty error still counts as a failed payment.
type PaymentResult struct {
	Success      bool
	ProviderTxID string
	Error        string
}

// PaymentProvider executes a single payment against the external payment
// rail. The rail protocol is opaque to the core; the core never retries at
// the network level inside one Pay call — retries are a batch-level concept.
type PaymentProvider interface {
	// Name identifies the provider (recorded on the batch)
	Name() string

	// Pay submits one transaction. A non-nil error means the payment could
	// not be submitted or confirmed; a result with Success=false means the
	// rail rejected it. Both are failures from the orchestrator's view.
	Pay(ctx context.Context, tx *DisbursementTransaction) (*PaymentResult, error)
}
