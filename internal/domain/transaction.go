package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle status of a disbursement
// transaction. Simpler than the batch state machine: no QUEUED state.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
)

// DisbursementTransaction is one payment instruction for one affiliate
// within a batch. A transaction belongs to exactly one batch and is paid at
// most once: COMPLETED is terminal and never re-entered by a later pass.
type DisbursementTransaction struct {
	ID          uuid.UUID
	BatchID     uuid.UUID
	AffiliateID uuid.UUID
	// CommissionIDs are the commissions settled by this payment
	CommissionIDs []uuid.UUID
	// ProviderRef is our reference sent to the payment rail, used as the
	// idempotency key. Equal to the transaction id.
	ProviderRef string
	// ProviderTxID is the rail's own transaction id, empty until confirmed
	ProviderTxID string
	// PayeeAccount is the affiliate's resolved payout destination on the
	// rail. Empty means the affiliate is not yet payment-eligible and the
	// transaction is skipped during execution.
	PayeeAccount string
	Amount       decimal.Decimal
	Currency     string
	Status       TransactionStatus
	RetryCount   int
	LastRetryAt  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
}

// Attemptable reports whether an execution pass should submit this
// transaction to the payment rail.
func (t *DisbursementTransaction) Attemptable() bool {
	return t.Status == TransactionStatusPending && t.PayeeAccount != ""
}

// MarkCompleted records a confirmed payment. The commission PAID writes
// must be persisted together with this state (see TransactionRepository).
func (t *DisbursementTransaction) MarkCompleted(providerTxID string) {
	t.Status = TransactionStatusCompleted
	t.ProviderTxID = providerTxID
	t.ErrorMessage = ""
}

// MarkFailed records a rail failure and counts the attempt.
func (t *DisbursementTransaction) MarkFailed(errorMessage string, at time.Time) {
	t.Status = TransactionStatusFailed
	t.ErrorMessage = errorMessage
	t.RetryCount++
	t.LastRetryAt = &at
}

// ResetForRetry puts a FAILED transaction back to PENDING so the next
// execution pass re-attempts it. RetryCount is kept.
func (t *DisbursementTransaction) ResetForRetry() {
	t.Status = TransactionStatusPending
	t.ErrorMessage = ""
}
