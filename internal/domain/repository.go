package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionStats is a read-only aggregation of a batch's transactions.
type ExecutionStats struct {
	BatchID    uuid.UUID
	Total      int
	Completed  int
	Failed     int
	Pending    int
	PaidAmount decimal.Decimal
}

// BatchRepository defines the interface for payment batch persistence
type BatchRepository interface {
	// Create persists a new batch header
	Create(ctx context.Context, batch *PaymentBatch) error

	// GetByID retrieves a batch header by id.
	// Returns ErrBatchNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentBatch, error)

	// List retrieves batches ordered newest-first, optionally filtered by
	// status (empty statusFilter means all), capped at limit
	List(ctx context.Context, statusFilter BatchStatus, limit int) ([]*PaymentBatch, error)

	// Update persists the batch's status, error message and lifecycle
	// timestamps
	Update(ctx context.Context, batch *PaymentBatch) error

	// Delete removes a batch; the store cascades to its transactions and
	// audit log entries
	Delete(ctx context.Context, id uuid.UUID) error

	// ClaimForExecution atomically moves the batch to PROCESSING and sets
	// executed_at, only if its current status is executable
	// (PENDING/QUEUED/FAILED). Returns false when the conditional update
	// affected no row, i.e. the batch was already claimed or is not
	// executable. This is the single-row compare-and-swap that replaces a
	// check-then-act status write.
	ClaimForExecution(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// ActiveExists reports whether any batch other than exclude is
	// currently PROCESSING
	ActiveExists(ctx context.Context, exclude uuid.UUID) (bool, error)
}

// ExecutionLockRepository is the named lock guarding batch execution
// system-wide. Backed by a single lock row so the guard holds across
// processes, not just within one.
type ExecutionLockRepository interface {
	// Acquire takes the disbursement execution lock for holder. Returns
	// false without error when another holder owns it.
	Acquire(ctx context.Context, holder string) (bool, error)

	// Release frees the lock if held by holder
	Release(ctx context.Context, holder string) error
}

// TransactionRepository defines the interface for disbursement transaction
// persistence
type TransactionRepository interface {
	// CreateAll persists the batch's transactions in one store transaction
	CreateAll(ctx context.Context, txns []DisbursementTransaction) error

	// ListByBatch retrieves all transactions of a batch, oldest-first
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]DisbursementTransaction, error)

	// Update persists a transaction's status, provider ids, retry
	// bookkeeping and error message
	Update(ctx context.Context, tx *DisbursementTransaction) error

	// CompleteWithCommissions persists the transaction's COMPLETED state
	// and marks its commissions PAID in one store transaction, so a crash
	// cannot separate the two writes
	CompleteWithCommissions(ctx context.Context, tx *DisbursementTransaction) error

	// CancelPending moves all PENDING transactions of the batch to
	// CANCELLED with reason as their error message, leaving settled
	// outcomes untouched. Returns the number of transactions cancelled.
	CancelPending(ctx context.Context, batchID uuid.UUID, reason string) (int, error)

	// StatsByBatch aggregates transaction counts and the paid amount (sum
	// of COMPLETED amounts) for a batch. Unknown batch ids yield zero stats.
	StatsByBatch(ctx context.Context, batchID uuid.UUID) (*ExecutionStats, error)
}

// CommissionRepository defines the read side the core needs from the
// commission subsystem. The PAID transition is applied through
// TransactionRepository.CompleteWithCommissions to keep it atomic with the
// transaction write.
type CommissionRepository interface {
	// AggregateOwed groups unpaid approved commissions per affiliate.
	// Aggregates below minPayout are returned with CanPayout unset.
	AggregateOwed(ctx context.Context, minPayout decimal.Decimal) ([]CommissionAggregate, error)

	// CreateAll persists commissions, skipping ids that already exist.
	// Used by seeding; production commissions arrive via the affiliate
	// subsystem's own writes.
	CreateAll(ctx context.Context, commissions []Commission) error
}

// PayoutAccountRepository resolves affiliates' payout destinations
type PayoutAccountRepository interface {
	// GetByAffiliateID returns the affiliate's active payout account, or
	// ErrPayoutAccountNotFound
	GetByAffiliateID(ctx context.Context, affiliateID uuid.UUID) (*PayoutAccount, error)

	// Upsert creates or replaces the affiliate's payout account
	Upsert(ctx context.Context, account *PayoutAccount) error
}

// AuditLogRepository defines the interface for the append-only audit log
type AuditLogRepository interface {
	// Create appends an entry; entries are never updated or deleted
	Create(ctx context.Context, entry *AuditLogEntry) error

	// ListByBatch retrieves a batch's audit entries, oldest-first
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]AuditLogEntry, error)
}
