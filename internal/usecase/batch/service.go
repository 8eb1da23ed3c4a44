package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradealerts/payout-backend/internal/domain"
	"github.com/tradealerts/payout-backend/internal/usecase/splitter"
)

// CreateBatchResult is returned by batch creation
type CreateBatchResult struct {
	Batch *domain.PaymentBatch
	// TransactionCount is the number of transactions actually materialized.
	// It can be lower than the batch's PaymentCount when affiliates have no
	// resolvable payout account.
	TransactionCount int
}

// BatchService owns batch and transaction creation and all status
// bookkeeping outside of execution
type BatchService struct {
	BatchRepo         domain.BatchRepository
	TransactionRepo   domain.TransactionRepository
	CommissionRepo    domain.CommissionRepository
	PayoutAccountRepo domain.PayoutAccountRepository
	AuditRepo         domain.AuditLogRepository

	// Currency is stamped on every batch and transaction this service creates
	Currency string
	// MinPayout is the eligibility threshold used when aggregating owed
	// commissions from the store
	MinPayout decimal.Decimal
}

// NewBatchService creates a new BatchService instance
func NewBatchService(
	batchRepo domain.BatchRepository,
	transactionRepo domain.TransactionRepository,
	commissionRepo domain.CommissionRepository,
	payoutAccountRepo domain.PayoutAccountRepository,
	auditRepo domain.AuditLogRepository,
	currency string,
	minPayout decimal.Decimal,
) *BatchService {
	return &BatchService{
		BatchRepo:         batchRepo,
		TransactionRepo:   transactionRepo,
		CommissionRepo:    commissionRepo,
		PayoutAccountRepo: payoutAccountRepo,
		AuditRepo:         auditRepo,
		Currency:          currency,
		MinPayout:         minPayout,
	}
}

// CreateBatch turns payable commission aggregates into a durable PENDING
// batch plus one transaction per payable aggregate. Aggregates with
// CanPayout unset are filtered out; if none remain the call fails with
// ErrNoPayableAffiliates. An affiliate without a resolvable payout account
// is skipped, not fatal.
func (s *BatchService) CreateBatch(
	ctx context.Context,
	aggregates []domain.CommissionAggregate,
	providerID string,
	actor string,
) (*CreateBatchResult, error) {
	payable := make([]domain.CommissionAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.CanPayout {
			payable = append(payable, agg)
		}
	}
	if len(payable) == 0 {
		return nil, domain.ErrNoPayableAffiliates
	}

	totalAmount := decimal.Zero
	for _, agg := range payable {
		totalAmount = totalAmount.Add(agg.TotalAmount)
	}

	now := time.Now()
	batch := &domain.PaymentBatch{
		ID:           uuid.New(),
		BatchNumber:  domain.NewBatchNumber(now),
		PaymentCount: len(payable),
		TotalAmount:  totalAmount,
		Currency:     s.Currency,
		ProviderID:   providerID,
		Status:       domain.BatchStatusPending,
		ScheduledAt:  &now,
		CreatedAt:    now,
	}

	if err := s.BatchRepo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	txns := make([]domain.DisbursementTransaction, 0, len(payable))
	skipped := 0
	for _, agg := range payable {
		account, err := s.PayoutAccountRepo.GetByAffiliateID(ctx, agg.AffiliateID)
		if err != nil {
			if errors.Is(err, domain.ErrPayoutAccountNotFound) {
				log.Printf("[batch] skipping affiliate %s: no payout account", agg.AffiliateID)
				skipped++
				continue
			}
			return nil, fmt.Errorf("failed to resolve payout account for affiliate %s: %w", agg.AffiliateID, err)
		}

		txID := uuid.New()
		txns = append(txns, domain.DisbursementTransaction{
			ID:            txID,
			BatchID:       batch.ID,
			AffiliateID:   agg.AffiliateID,
			CommissionIDs: agg.CommissionIDs,
			ProviderRef:   txID.String(),
			PayeeAccount:  account.Address,
			Amount:        agg.TotalAmount,
			Currency:      s.Currency,
			Status:        domain.TransactionStatusPending,
			CreatedAt:     now,
		})
	}

	if len(txns) > 0 {
		if err := s.TransactionRepo.CreateAll(ctx, txns); err != nil {
			return nil, fmt.Errorf("failed to create batch transactions: %w", err)
		}
	}

	status := domain.AuditStatusSuccess
	details := fmt.Sprintf("batch %s created: %d payments totalling %s %s",
		batch.BatchNumber, len(txns), totalAmount.String(), s.Currency)
	if skipped > 0 {
		status = domain.AuditStatusWarning
		details = fmt.Sprintf("%s (%d affiliates skipped, no payout account)", details, skipped)
	}
	s.audit(ctx, &batch.ID, "batch.created", actor, status, details)

	return &CreateBatchResult{Batch: batch, TransactionCount: len(txns)}, nil
}

// CreateBatchFromOwed aggregates unpaid commissions straight from the store
// and creates a batch from the eligible aggregates. Convenience entry point
// for the disbursement scheduler. One call creates at most one rail-sized
// batch; when more affiliates are payable than fit, the remainder is left
// owed for the next run.
func (s *BatchService) CreateBatchFromOwed(ctx context.Context, providerID, actor string) (*CreateBatchResult, error) {
	aggregates, err := s.CommissionRepo.AggregateOwed(ctx, s.MinPayout)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate owed commissions: %w", err)
	}

	payable := make([]domain.CommissionAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.CanPayout {
			payable = append(payable, agg)
		}
	}

	chunks := splitter.Split(payable, splitter.MaxBatchSize)
	if len(chunks) > 1 {
		log.Printf("[batch] %d payable affiliates exceed one batch; batching first %d, %d left owed",
			len(payable), len(chunks[0]), len(payable)-len(chunks[0]))
		return s.CreateBatch(ctx, chunks[0], providerID, actor)
	}

	return s.CreateBatch(ctx, aggregates, providerID, actor)
}

// GetBatchByID returns the batch with its transactions and audit log
// entries. Returns ErrBatchNotFound if absent. Read-only.
func (s *BatchService) GetBatchByID(ctx context.Context, id uuid.UUID) (*domain.PaymentBatch, error) {
	batch, err := s.BatchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	txns, err := s.TransactionRepo.ListByBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch transactions: %w", err)
	}
	batch.Transactions = txns

	auditLog, err := s.AuditRepo.ListByBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch audit log: %w", err)
	}
	batch.AuditLog = auditLog

	return batch, nil
}

// GetAllBatches returns batches newest-first, optionally filtered by
// status. A non-positive limit defaults to 50.
func (s *BatchService) GetAllBatches(ctx context.Context, statusFilter domain.BatchStatus, limit int) ([]*domain.PaymentBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.BatchRepo.List(ctx, statusFilter, limit)
}

// UpdateBatchStatus is the low-level status mutator: it applies the target
// status with its timestamp bookkeeping and persists the batch. Transition
// legality is the orchestrator's concern, not enforced here.
func (s *BatchService) UpdateBatchStatus(ctx context.Context, id uuid.UUID, status domain.BatchStatus, errorMessage string) (*domain.PaymentBatch, error) {
	batch, err := s.BatchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := batch.MarkStatus(status, errorMessage, time.Now()); err != nil {
		return nil, err
	}
	if err := s.BatchRepo.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to update batch status: %w", err)
	}

	s.audit(ctx, &batch.ID, "batch.status_changed", "", domain.AuditStatusInfo,
		fmt.Sprintf("batch %s moved to %s", batch.BatchNumber, status))

	return batch, nil
}

// DeleteBatch removes a batch and cascades to its transactions and audit
// entries. PROCESSING and COMPLETED batches cannot be deleted: money has
// moved or is moving, and the audit trail must stay coherent.
func (s *BatchService) DeleteBatch(ctx context.Context, id uuid.UUID, actor string) error {
	batch, err := s.BatchRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if batch.Status == domain.BatchStatusProcessing || batch.Status == domain.BatchStatusCompleted {
		return fmt.Errorf("%w: batch %s is %s", domain.ErrCannotDeleteActiveBatch, batch.BatchNumber, batch.Status)
	}

	if err := s.BatchRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	// the batch's own audit entries are gone with it; record the deletion
	// as an unscoped entry so the action itself stays traceable
	s.audit(ctx, nil, "batch.deleted", actor, domain.AuditStatusInfo,
		fmt.Sprintf("batch %s (%s) deleted", batch.BatchNumber, batch.ID))

	return nil
}

// CancelBatch cancels a batch and its still-PENDING transactions with the
// given reason. Transactions already COMPLETED or FAILED are left
// untouched: cancellation never rewrites settled outcomes.
func (s *BatchService) CancelBatch(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.PaymentBatch, error) {
	batch, err := s.BatchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if batch.Status == domain.BatchStatusCancelled {
		return nil, fmt.Errorf("%w: batch %s is already cancelled", domain.ErrInvalidBatchStatus, batch.BatchNumber)
	}

	if err := batch.MarkStatus(domain.BatchStatusCancelled, reason, time.Now()); err != nil {
		return nil, err
	}
	if err := s.BatchRepo.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to cancel batch: %w", err)
	}

	cancelled, err := s.TransactionRepo.CancelPending(ctx, id, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel pending transactions: %w", err)
	}

	s.audit(ctx, &batch.ID, "batch.cancelled", actor, domain.AuditStatusWarning,
		fmt.Sprintf("batch %s cancelled (%d pending transactions cancelled): %s", batch.BatchNumber, cancelled, reason))

	return batch, nil
}

// IsBatchProcessing reports whether any batch is currently PROCESSING.
// This is the single-active-batch guard consulted before execution.
func (s *BatchService) IsBatchProcessing(ctx context.Context) (bool, error) {
	return s.BatchRepo.ActiveExists(ctx, uuid.Nil)
}

// audit appends an entry; audit failures are logged, never fatal to the
// operation that triggered them
func (s *BatchService) audit(ctx context.Context, batchID *uuid.UUID, action, actor string, status domain.AuditStatus, details string) {
	entry := domain.NewAuditLogEntry(batchID, action, actor, status, details)
	if err := s.AuditRepo.Create(ctx, entry); err != nil {
		log.Printf("[batch] failed to write audit entry %s: %v", action, err)
	}
}
