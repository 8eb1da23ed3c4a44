package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the lifecycle status of a payment batch
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusQueued     BatchStatus = "QUEUED"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusFailed     BatchStatus = "FAILED"
	BatchStatusCancelled  BatchStatus = "CANCELLED"
)

// PaymentBatch is the unit-of-work header for one disbursement run.
// It is created once per run and mutated only through status transitions.
type PaymentBatch struct {
	ID           uuid.UUID
	BatchNumber  string
	PaymentCount int
	TotalAmount  decimal.Decimal
	Currency     string
	ProviderID   string
	Status       BatchStatus
	ErrorMessage string
	ScheduledAt  *time.Time
	ExecutedAt   *time.Time
	CompletedAt  *time.Time
	FailedAt     *time.Time
	CreatedAt    time.Time

	// Transactions is populated on full reads (GetByID), nil otherwise
	Transactions []DisbursementTransaction
	// AuditLog is populated on full reads (GetByID), nil otherwise
	AuditLog []AuditLogEntry
}

// batchTransition describes the side effects of moving a batch to a target
// status. Keyed by target status so the timestamp bookkeeping lives in one
// table instead of being scattered across string comparisons.
type batchTransition struct {
	setTimestamp func(b *PaymentBatch, at time.Time)
	keepsError   bool
}

var batchTransitions = map[BatchStatus]batchTransition{
	BatchStatusPending: {},
	BatchStatusQueued:  {},
	BatchStatusProcessing: {
		setTimestamp: func(b *PaymentBatch, at time.Time) { b.ExecutedAt = &at },
	},
	BatchStatusCompleted: {
		setTimestamp: func(b *PaymentBatch, at time.Time) { b.CompletedAt = &at },
	},
	BatchStatusFailed: {
		setTimestamp: func(b *PaymentBatch, at time.Time) { b.FailedAt = &at },
		keepsError:   true,
	},
	BatchStatusCancelled: {
		keepsError: true,
	},
}

// MarkStatus moves the batch to the target status and applies the timestamp
// and error-message bookkeeping that belongs to that status. It does not
// validate transition legality; the orchestrator's state machine owns that.
func (b *PaymentBatch) MarkStatus(target BatchStatus, errorMessage string, at time.Time) error {
	transition, ok := batchTransitions[target]
	if !ok {
		return fmt.Errorf("unknown batch status %q", target)
	}

	b.Status = target
	if transition.setTimestamp != nil {
		transition.setTimestamp(b, at)
	}
	if transition.keepsError {
		b.ErrorMessage = errorMessage
	} else {
		b.ErrorMessage = ""
	}

	return nil
}

// IsExecutable reports whether the batch may be claimed for execution.
// COMPLETED batches must never be re-executed; PROCESSING batches must not
// be re-entered; CANCELLED is a terminal side branch.
func (b *PaymentBatch) IsExecutable() bool {
	switch b.Status {
	case BatchStatusPending, BatchStatusQueued, BatchStatusFailed:
		return true
	default:
		return false
	}
}

// NewBatchNumber generates a human-readable unique batch number, e.g.
// "BATCH-2026-9F3A2C1B".
func NewBatchNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("BATCH-%d-%s", at.Year(), suffix)
}
