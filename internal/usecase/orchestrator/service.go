package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// executionLockName labels the holder of the disbursement execution lock
const executionLockName = "batch-execution"

// ExecutionResult describes one execution pass over a batch. Partial
// success is always observable: callers get the success/fail split even
// when the batch as a whole is marked FAILED.
type ExecutionResult struct {
	Success      bool
	BatchID      uuid.UUID
	BatchNumber  string
	TotalAmount  decimal.Decimal
	SuccessCount int
	FailedCount  int
	SkippedCount int
	Errors       []string
	Message      string
}

// ExecutionSummary is the read-only reporting view of a batch
type ExecutionSummary struct {
	BatchID     uuid.UUID
	BatchNumber string
	Status      domain.BatchStatus
	TotalAmount decimal.Decimal
	Stats       domain.ExecutionStats
}

// OrchestratorService drives execution of a batch's transactions against
// the payment provider and owns execution-time status mutation
type OrchestratorService struct {
	BatchRepo       domain.BatchRepository
	TransactionRepo domain.TransactionRepository
	AuditRepo       domain.AuditLogRepository
	LockRepo        domain.ExecutionLockRepository
	Provider        domain.PaymentProvider
}

// NewOrchestratorService creates a new OrchestratorService instance
func NewOrchestratorService(
	batchRepo domain.BatchRepository,
	transactionRepo domain.TransactionRepository,
	auditRepo domain.AuditLogRepository,
	lockRepo domain.ExecutionLockRepository,
	provider domain.PaymentProvider,
) *OrchestratorService {
	return &OrchestratorService{
		BatchRepo:       batchRepo,
		TransactionRepo: transactionRepo,
		AuditRepo:       auditRepo,
		LockRepo:        lockRepo,
		Provider:        provider,
	}
}

// ExecuteBatch runs one execution pass over the batch: claims it with the
// system-wide execution lock plus an atomic status claim, submits every
// attemptable transaction to the provider sequentially, and finalizes the
// batch's terminal status. A provider failure never aborts the pass;
// remaining transactions are still attempted.
func (s *OrchestratorService) ExecuteBatch(ctx context.Context, batchID uuid.UUID) (*ExecutionResult, error) {
	batch, err := s.BatchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if batch.Status == domain.BatchStatusProcessing || batch.Status == domain.BatchStatusCompleted {
		return nil, fmt.Errorf("%w: batch %s is %s", domain.ErrInvalidBatchStatus, batch.BatchNumber, batch.Status)
	}

	active, err := s.BatchRepo.ActiveExists(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to check processing batches: %w", err)
	}
	if active {
		return nil, domain.ErrAnotherBatchProcessing
	}

	// lock row + conditional status claim replace the racy check-then-act
	// guard: the ActiveExists check above only exists to report the right
	// error, correctness comes from the two atomic writes below
	holder := fmt.Sprintf("%s:%s", executionLockName, batchID)
	acquired, err := s.LockRepo.Acquire(ctx, holder)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire execution lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrAnotherBatchProcessing
	}
	defer func() {
		if err := s.LockRepo.Release(context.WithoutCancel(ctx), holder); err != nil {
			log.Printf("[orchestrator] failed to release execution lock: %v", err)
		}
	}()

	now := time.Now()
	claimed, err := s.BatchRepo.ClaimForExecution(ctx, batchID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch for execution: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: batch %s was claimed concurrently", domain.ErrInvalidBatchStatus, batch.BatchNumber)
	}
	batch.MarkStatus(domain.BatchStatusProcessing, "", now)

	s.audit(ctx, &batch.ID, "batch.execution_started", domain.AuditStatusInfo,
		fmt.Sprintf("executing batch %s via %s", batch.BatchNumber, s.Provider.Name()))

	txns, err := s.TransactionRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch transactions: %w", err)
	}

	result := &ExecutionResult{
		BatchID:     batch.ID,
		BatchNumber: batch.BatchNumber,
		TotalAmount: batch.TotalAmount,
	}

	// sequential on purpose: the success/fail tally and the terminal batch
	// status must not race between writers
	for i := range txns {
		tx := &txns[i]
		if !tx.Attemptable() {
			if tx.Status == domain.TransactionStatusPending {
				// pending but no payee account: affiliate not yet
				// payment-eligible, excluded from both tallies
				result.SkippedCount++
			}
			continue
		}
		s.payOne(ctx, tx, result)
	}

	finalStatus := domain.BatchStatusCompleted
	errorMessage := ""
	auditStatus := domain.AuditStatusSuccess
	if result.FailedCount > 0 {
		finalStatus = domain.BatchStatusFailed
		errorMessage = fmt.Sprintf("%d of %d payments failed", result.FailedCount, result.SuccessCount+result.FailedCount)
		auditStatus = domain.AuditStatusFailure
	}

	batch.MarkStatus(finalStatus, errorMessage, time.Now())
	if err := s.BatchRepo.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to finalize batch status: %w", err)
	}

	result.Success = result.FailedCount == 0
	result.Message = fmt.Sprintf("batch %s finished: %d succeeded, %d failed, %d skipped",
		batch.BatchNumber, result.SuccessCount, result.FailedCount, result.SkippedCount)

	s.audit(ctx, &batch.ID, "batch.execution_finished", auditStatus, result.Message)
	log.Printf("[orchestrator] %s", result.Message)

	return result, nil
}

// payOne submits a single transaction and records its outcome. All failure
// modes resolve to stored state plus an entry in result.Errors.
func (s *OrchestratorService) payOne(ctx context.Context, tx *domain.DisbursementTransaction, result *ExecutionResult) {
	payment, err := s.Provider.Pay(ctx, tx)

	var failure string
	switch {
	case err != nil:
		failure = err.Error()
	case !payment.Success:
		failure = payment.Error
		if failure == "" {
			failure = "payment rejected by provider"
		}
	}

	if failure != "" {
		tx.MarkFailed(failure, time.Now())
		if updErr := s.TransactionRepo.Update(ctx, tx); updErr != nil {
			log.Printf("[orchestrator] failed to persist failure of transaction %s: %v", tx.ID, updErr)
		}
		s.audit(ctx, &tx.BatchID, "transaction.failed", domain.AuditStatusFailure,
			fmt.Sprintf("payment of %s %s to affiliate %s failed: %s", tx.Amount, tx.Currency, tx.AffiliateID, failure))
		result.FailedCount++
		result.Errors = append(result.Errors, fmt.Sprintf("affiliate %s: %s", tx.AffiliateID, failure))
		return
	}

	tx.MarkCompleted(payment.ProviderTxID)
	if err := s.TransactionRepo.CompleteWithCommissions(ctx, tx); err != nil {
		// the rail confirmed the payment but the settlement write failed.
		// The provider ref doubles as idempotency key, so a later retry
		// pass cannot double-pay; surface it loudly for reconciliation.
		s.audit(ctx, &tx.BatchID, "transaction.settlement_write_failed", domain.AuditStatusWarning,
			fmt.Sprintf("payment %s confirmed by provider but not persisted: %v", tx.ID, err))
		result.FailedCount++
		result.Errors = append(result.Errors, fmt.Sprintf("affiliate %s: settlement write failed: %v", tx.AffiliateID, err))
		return
	}

	s.audit(ctx, &tx.BatchID, "transaction.completed", domain.AuditStatusSuccess,
		fmt.Sprintf("paid %s %s to affiliate %s (provider tx %s)", tx.Amount, tx.Currency, tx.AffiliateID, tx.ProviderTxID))
	result.SuccessCount++
}

// RetryFailedTransactions resets every FAILED transaction of the batch back
// to PENDING (error cleared, retry count kept) and re-executes the batch.
// With nothing to retry it returns a success result and never touches the
// provider.
func (s *OrchestratorService) RetryFailedTransactions(ctx context.Context, batchID uuid.UUID) (*ExecutionResult, error) {
	batch, err := s.BatchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	txns, err := s.TransactionRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch transactions: %w", err)
	}

	retried := 0
	for i := range txns {
		tx := &txns[i]
		if tx.Status != domain.TransactionStatusFailed {
			continue
		}
		tx.ResetForRetry()
		if err := s.TransactionRepo.Update(ctx, tx); err != nil {
			return nil, fmt.Errorf("failed to reset transaction %s: %w", tx.ID, err)
		}
		retried++
	}

	if retried == 0 {
		return &ExecutionResult{
			Success:     true,
			BatchID:     batch.ID,
			BatchNumber: batch.BatchNumber,
			TotalAmount: batch.TotalAmount,
			Message:     "No failed transactions to retry",
		}, nil
	}

	s.audit(ctx, &batch.ID, "batch.retry", domain.AuditStatusInfo,
		fmt.Sprintf("retrying %d failed transactions of batch %s", retried, batch.BatchNumber))

	return s.ExecuteBatch(ctx, batchID)
}

// GetExecutionStats aggregates transaction counts and the paid amount for
// a batch. Unknown batch ids yield zero stats rather than an error: this is
// a reporting query.
func (s *OrchestratorService) GetExecutionStats(ctx context.Context, batchID uuid.UUID) (*domain.ExecutionStats, error) {
	return s.TransactionRepo.StatsByBatch(ctx, batchID)
}

// GetExecutionSummary combines the batch header with its execution stats.
// Unknown batch ids yield an empty summary.
func (s *OrchestratorService) GetExecutionSummary(ctx context.Context, batchID uuid.UUID) (*ExecutionSummary, error) {
	batch, err := s.BatchRepo.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return &ExecutionSummary{BatchID: batchID, TotalAmount: decimal.Zero}, nil
		}
		return nil, err
	}

	stats, err := s.TransactionRepo.StatsByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate batch stats: %w", err)
	}

	return &ExecutionSummary{
		BatchID:     batch.ID,
		BatchNumber: batch.BatchNumber,
		Status:      batch.Status,
		TotalAmount: batch.TotalAmount,
		Stats:       *stats,
	}, nil
}

func (s *OrchestratorService) audit(ctx context.Context, batchID *uuid.UUID, action string, status domain.AuditStatus, details string) {
	entry := domain.NewAuditLogEntry(batchID, action, "", status, details)
	if err := s.AuditRepo.Create(ctx, entry); err != nil {
		log.Printf("[orchestrator] failed to write audit entry %s: %v", action, err)
	}
}
