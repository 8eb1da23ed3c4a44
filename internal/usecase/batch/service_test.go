package batch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tradealerts/payout-backend/internal/domain"
	"github.com/tradealerts/payout-backend/internal/usecase/splitter"
)

// MockBatchRepository is a mock implementation of BatchRepository for testing
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) Create(ctx context.Context, batch *domain.PaymentBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentBatch), args.Error(1)
}

func (m *MockBatchRepository) List(ctx context.Context, statusFilter domain.BatchStatus, limit int) ([]*domain.PaymentBatch, error) {
	args := m.Called(ctx, statusFilter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentBatch), args.Error(1)
}

func (m *MockBatchRepository) Update(ctx context.Context, batch *domain.PaymentBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBatchRepository) ClaimForExecution(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockBatchRepository) ActiveExists(ctx context.Context, exclude uuid.UUID) (bool, error) {
	args := m.Called(ctx, exclude)
	return args.Bool(0), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository for testing
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateAll(ctx context.Context, txns []domain.DisbursementTransaction) error {
	args := m.Called(ctx, txns)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.DisbursementTransaction, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DisbursementTransaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *domain.DisbursementTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) CompleteWithCommissions(ctx context.Context, tx *domain.DisbursementTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) CancelPending(ctx context.Context, batchID uuid.UUID, reason string) (int, error) {
	args := m.Called(ctx, batchID, reason)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) StatsByBatch(ctx context.Context, batchID uuid.UUID) (*domain.ExecutionStats, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExecutionStats), args.Error(1)
}

// MockCommissionRepository is a mock implementation of CommissionRepository for testing
type MockCommissionRepository struct {
	mock.Mock
}

func (m *MockCommissionRepository) AggregateOwed(ctx context.Context, minPayout decimal.Decimal) ([]domain.CommissionAggregate, error) {
	args := m.Called(ctx, minPayout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CommissionAggregate), args.Error(1)
}

func (m *MockCommissionRepository) CreateAll(ctx context.Context, commissions []domain.Commission) error {
	args := m.Called(ctx, commissions)
	return args.Error(0)
}

// MockPayoutAccountRepository is a mock implementation of PayoutAccountRepository for testing
type MockPayoutAccountRepository struct {
	mock.Mock
}

func (m *MockPayoutAccountRepository) GetByAffiliateID(ctx context.Context, affiliateID uuid.UUID) (*domain.PayoutAccount, error) {
	args := m.Called(ctx, affiliateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayoutAccount), args.Error(1)
}

func (m *MockPayoutAccountRepository) Upsert(ctx context.Context, account *domain.PayoutAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockAuditLogRepository is a mock implementation of AuditLogRepository for testing
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}

func newTestService() (*BatchService, *MockBatchRepository, *MockTransactionRepository, *MockCommissionRepository, *MockPayoutAccountRepository, *MockAuditLogRepository) {
	batchRepo := new(MockBatchRepository)
	txRepo := new(MockTransactionRepository)
	commissionRepo := new(MockCommissionRepository)
	accountRepo := new(MockPayoutAccountRepository)
	auditRepo := new(MockAuditLogRepository)

	svc := NewBatchService(batchRepo, txRepo, commissionRepo, accountRepo, auditRepo, "USDT", decimal.NewFromInt(50))
	return svc, batchRepo, txRepo, commissionRepo, accountRepo, auditRepo
}

func payableAggregate(amount int64) domain.CommissionAggregate {
	return domain.CommissionAggregate{
		AffiliateID:      uuid.New(),
		CommissionIDs:    []uuid.UUID{uuid.New(), uuid.New()},
		TotalAmount:      decimal.NewFromInt(amount),
		CommissionCount:  2,
		OldestCommission: time.Now().AddDate(0, -1, 0),
		CanPayout:        true,
	}
}

func TestCreateBatch_HappyPath(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, _, accountRepo, auditRepo := newTestService()

	aggA := payableAggregate(120)
	aggB := payableAggregate(80)
	notPayable := payableAggregate(999)
	notPayable.CanPayout = false

	accountRepo.On("GetByAffiliateID", ctx, aggA.AffiliateID).
		Return(&domain.PayoutAccount{AffiliateID: aggA.AffiliateID, Address: "addr-a", Network: "TRC20", Active: true}, nil)
	accountRepo.On("GetByAffiliateID", ctx, aggB.AffiliateID).
		Return(&domain.PayoutAccount{AffiliateID: aggB.AffiliateID, Address: "addr-b", Network: "TRC20", Active: true}, nil)

	batchRepo.On("Create", ctx, mock.MatchedBy(func(b *domain.PaymentBatch) bool {
		return b.Status == domain.BatchStatusPending &&
			b.PaymentCount == 2 &&
			b.TotalAmount.Equal(decimal.NewFromInt(200)) &&
			b.Currency == "USDT" &&
			b.ProviderID == "chainpay"
	})).Return(nil)

	txRepo.On("CreateAll", ctx, mock.MatchedBy(func(txns []domain.DisbursementTransaction) bool {
		if len(txns) != 2 {
			return false
		}
		for _, tx := range txns {
			if tx.Status != domain.TransactionStatusPending || tx.PayeeAccount == "" {
				return false
			}
			if tx.ProviderRef != tx.ID.String() {
				return false
			}
		}
		return true
	})).Return(nil)

	auditRepo.On("Create", ctx, mock.AnythingOfType("*domain.AuditLogEntry")).Return(nil)

	result, err := svc.CreateBatch(ctx, []domain.CommissionAggregate{aggA, notPayable, aggB}, "chainpay", "admin@tradealerts")

	require.NoError(t, err)
	assert.Equal(t, 2, result.TransactionCount)
	assert.Equal(t, 2, result.Batch.PaymentCount)
	assert.True(t, result.Batch.TotalAmount.Equal(decimal.NewFromInt(200)))
	batchRepo.AssertExpectations(t)
	txRepo.AssertExpectations(t)
	accountRepo.AssertExpectations(t)
}

func TestCreateBatch_NoPayableAffiliates(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, _, _, _ := newTestService()

	agg := payableAggregate(100)
	agg.CanPayout = false

	result, err := svc.CreateBatch(ctx, []domain.CommissionAggregate{agg}, "chainpay", "")

	assert.ErrorIs(t, err, domain.ErrNoPayableAffiliates)
	assert.Nil(t, result)
	batchRepo.AssertNotCalled(t, "Create")
	txRepo.AssertNotCalled(t, "CreateAll")
}

func TestCreateBatch_EmptyInput(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _, _ := newTestService()

	result, err := svc.CreateBatch(ctx, nil, "chainpay", "")

	assert.ErrorIs(t, err, domain.ErrNoPayableAffiliates)
	assert.Nil(t, result)
}

func TestCreateBatch_SkipsAffiliateWithoutPayoutAccount(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, _, accountRepo, auditRepo := newTestService()

	resolved := payableAggregate(100)
	unresolved := payableAggregate(60)

	accountRepo.On("GetByAffiliateID", ctx, resolved.AffiliateID).
		Return(&domain.PayoutAccount{AffiliateID: resolved.AffiliateID, Address: "addr-ok", Active: true}, nil)
	accountRepo.On("GetByAffiliateID", ctx, unresolved.AffiliateID).
		Return(nil, domain.ErrPayoutAccountNotFound)

	batchRepo.On("Create", ctx, mock.Anything).Return(nil)
	txRepo.On("CreateAll", ctx, mock.MatchedBy(func(txns []domain.DisbursementTransaction) bool {
		return len(txns) == 1 && txns[0].AffiliateID == resolved.AffiliateID
	})).Return(nil)
	auditRepo.On("Create", ctx, mock.MatchedBy(func(e *domain.AuditLogEntry) bool {
		return e.Status == domain.AuditStatusWarning
	})).Return(nil)

	result, err := svc.CreateBatch(ctx, []domain.CommissionAggregate{resolved, unresolved}, "chainpay", "")

	require.NoError(t, err)
	// payment count reflects payable aggregates, transaction count what was
	// actually materialized
	assert.Equal(t, 2, result.Batch.PaymentCount)
	assert.Equal(t, 1, result.TransactionCount)
	txRepo.AssertExpectations(t)
}

func TestCreateBatchFromOwed(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, commissionRepo, accountRepo, auditRepo := newTestService()

	agg := payableAggregate(500)
	commissionRepo.On("AggregateOwed", ctx, decimal.NewFromInt(50)).
		Return([]domain.CommissionAggregate{agg}, nil)
	accountRepo.On("GetByAffiliateID", ctx, agg.AffiliateID).
		Return(&domain.PayoutAccount{AffiliateID: agg.AffiliateID, Address: "addr", Active: true}, nil)
	batchRepo.On("Create", ctx, mock.Anything).Return(nil)
	txRepo.On("CreateAll", ctx, mock.Anything).Return(nil)
	auditRepo.On("Create", ctx, mock.Anything).Return(nil)

	result, err := svc.CreateBatchFromOwed(ctx, "chainpay", "scheduler")

	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionCount)
	commissionRepo.AssertExpectations(t)
}

func TestCreateBatchFromOwed_CapsOneRunAtMaxBatchSize(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, commissionRepo, accountRepo, auditRepo := newTestService()

	aggregates := make([]domain.CommissionAggregate, 0, 150)
	for i := 0; i < 150; i++ {
		aggregates = append(aggregates, payableAggregate(100))
	}

	commissionRepo.On("AggregateOwed", ctx, decimal.NewFromInt(50)).Return(aggregates, nil)
	accountRepo.On("GetByAffiliateID", ctx, mock.Anything).
		Return(&domain.PayoutAccount{Address: "addr", Active: true}, nil)
	batchRepo.On("Create", ctx, mock.Anything).Return(nil)
	txRepo.On("CreateAll", ctx, mock.MatchedBy(func(txns []domain.DisbursementTransaction) bool {
		return len(txns) == splitter.MaxBatchSize
	})).Return(nil)
	auditRepo.On("Create", ctx, mock.Anything).Return(nil)

	result, err := svc.CreateBatchFromOwed(ctx, "chainpay", "scheduler")

	require.NoError(t, err)
	assert.Equal(t, splitter.MaxBatchSize, result.TransactionCount)
	assert.Equal(t, splitter.MaxBatchSize, result.Batch.PaymentCount)
}

func TestGetBatchByID_ComposesTransactionsAndAuditLog(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, _, _, auditRepo := newTestService()

	batchID := uuid.New()
	batchRepo.On("GetByID", ctx, batchID).
		Return(&domain.PaymentBatch{ID: batchID, Status: domain.BatchStatusPending}, nil)
	txRepo.On("ListByBatch", ctx, batchID).
		Return([]domain.DisbursementTransaction{{ID: uuid.New(), BatchID: batchID}}, nil)
	auditRepo.On("ListByBatch", ctx, batchID).
		Return([]domain.AuditLogEntry{{ID: uuid.New(), Action: "batch.created"}}, nil)

	batch, err := svc.GetBatchByID(ctx, batchID)

	require.NoError(t, err)
	assert.Len(t, batch.Transactions, 1)
	assert.Len(t, batch.AuditLog, 1)
}

func TestGetBatchByID_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, _, _, _, _ := newTestService()

	batchID := uuid.New()
	batchRepo.On("GetByID", ctx, batchID).Return(nil, domain.ErrBatchNotFound)

	batch, err := svc.GetBatchByID(ctx, batchID)

	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
	assert.Nil(t, batch)
}

func TestGetAllBatches_DefaultsLimit(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, _, _, _, _ := newTestService()

	batchRepo.On("List", ctx, domain.BatchStatus(""), 50).
		Return([]*domain.PaymentBatch{}, nil)

	_, err := svc.GetAllBatches(ctx, "", 0)

	require.NoError(t, err)
	batchRepo.AssertExpectations(t)
}

func TestUpdateBatchStatus_ProcessingSetsExecutedAt(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, _, _, _, auditRepo := newTestService()

	batchID := uuid.New()
	batchRepo.On("GetByID", ctx, batchID).
		Return(&domain.PaymentBatch{ID: batchID, Status: domain.BatchStatusPending}, nil)
	batchRepo.On("Update", ctx, mock.MatchedBy(func(b *domain.PaymentBatch) bool {
		return b.Status == domain.BatchStatusProcessing && b.ExecutedAt != nil
	})).Return(nil)
	auditRepo.On("Create", ctx, mock.Anything).Return(nil)

	batch, err := svc.UpdateBatchStatus(ctx, batchID, domain.BatchStatusProcessing, "")

	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusProcessing, batch.Status)
	batchRepo.AssertExpectations(t)
}

func TestDeleteBatch_RejectsProcessingAndCompleted(t *testing.T) {
	for _, status := range []domain.BatchStatus{domain.BatchStatusProcessing, domain.BatchStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			ctx := context.Background()
			svc, batchRepo, _, _, _, _ := newTestService()

			batchID := uuid.New()
			batchRepo.On("GetByID", ctx, batchID).
				Return(&domain.PaymentBatch{ID: batchID, Status: status}, nil)

			err := svc.DeleteBatch(ctx, batchID, "admin")

			assert.ErrorIs(t, err, domain.ErrCannotDeleteActiveBatch)
			batchRepo.AssertNotCalled(t, "Delete")
		})
	}
}

func TestDeleteBatch_PendingSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, _, _, _, auditRepo := newTestService()

	batchID := uuid.New()
	batchRepo.On("GetByID", ctx, batchID).
		Return(&domain.PaymentBatch{ID: batchID, Status: domain.BatchStatusPending}, nil)
	batchRepo.On("Delete", ctx, batchID).Return(nil)
	auditRepo.On("Create", ctx, mock.MatchedBy(func(e *domain.AuditLogEntry) bool {
		// deletion entry must not reference the deleted batch row
		return e.BatchID == nil && e.Action == "batch.deleted"
	})).Return(nil)

	err := svc.DeleteBatch(ctx, batchID, "admin")

	require.NoError(t, err)
	batchRepo.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
}

func TestDeleteBatch_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, _, _, _, _ := newTestService()

	batchID := uuid.New()
	batchRepo.On("GetByID", ctx, batchID).Return(nil, domain.ErrBatchNotFound)

	err := svc.DeleteBatch(ctx, batchID, "admin")

	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
}

func TestCancelBatch_AlreadyCancelled(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, _, _, _ := newTestService()

	batchID := uuid.New()
	batchRepo.On("GetByID", ctx, batchID).
		Return(&domain.PaymentBatch{ID: batchID, Status: domain.BatchStatusCancelled}, nil)

	batch, err := svc.CancelBatch(ctx, batchID, "duplicate run", "admin")

	assert.ErrorIs(t, err, domain.ErrInvalidBatchStatus)
	assert.Nil(t, batch)
	txRepo.AssertNotCalled(t, "CancelPending")
}

func TestCancelBatch_CancelsPendingTransactions(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, txRepo, _, _, auditRepo := newTestService()

	batchID := uuid.New()
	batchRepo.On("GetByID", ctx, batchID).
		Return(&domain.PaymentBatch{ID: batchID, BatchNumber: "BATCH-2026-AB12CD34", Status: domain.BatchStatusPending}, nil)
	batchRepo.On("Update", ctx, mock.MatchedBy(func(b *domain.PaymentBatch) bool {
		return b.Status == domain.BatchStatusCancelled && b.ErrorMessage == "duplicate run"
	})).Return(nil)
	txRepo.On("CancelPending", ctx, batchID, "duplicate run").Return(3, nil)
	auditRepo.On("Create", ctx, mock.Anything).Return(nil)

	batch, err := svc.CancelBatch(ctx, batchID, "duplicate run", "admin")

	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCancelled, batch.Status)
	txRepo.AssertExpectations(t)
}

func TestIsBatchProcessing(t *testing.T) {
	ctx := context.Background()
	svc, batchRepo, _, _, _, _ := newTestService()

	batchRepo.On("ActiveExists", ctx, uuid.Nil).Return(true, nil)

	processing, err := svc.IsBatchProcessing(ctx)

	require.NoError(t, err)
	assert.True(t, processing)
}
