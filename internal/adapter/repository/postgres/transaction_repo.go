package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, batch_id, affiliate_id, commission_ids, provider_ref, provider_tx_id,
	payee_account, amount, currency, status, retry_count, last_retry_at, error_message, created_at`

// CreateAll persists the batch's transactions in one database transaction
func (r *transactionRepository) CreateAll(ctx context.Context, txns []domain.DisbursementTransaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO disbursement_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for i := range txns {
		tx := &txns[i]
		_, err := dbTx.ExecContext(ctx, query,
			tx.ID,
			tx.BatchID,
			tx.AffiliateID,
			pq.Array(uuidsToStrings(tx.CommissionIDs)),
			tx.ProviderRef,
			nullString(tx.ProviderTxID),
			tx.PayeeAccount,
			tx.Amount.String(),
			tx.Currency,
			string(tx.Status),
			tx.RetryCount,
			tx.LastRetryAt,
			tx.ErrorMessage,
			tx.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}

	return nil
}

// ListByBatch retrieves all transactions of a batch, oldest-first
func (r *transactionRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.DisbursementTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM disbursement_transactions
		WHERE batch_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.DisbursementTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *tx)
	}

	return txns, rows.Err()
}

// Update persists a transaction's mutable execution state
func (r *transactionRepository) Update(ctx context.Context, tx *domain.DisbursementTransaction) error {
	query := `
		UPDATE disbursement_transactions
		SET status = $2, provider_tx_id = $3, retry_count = $4, last_retry_at = $5, error_message = $6
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		string(tx.Status),
		nullString(tx.ProviderTxID),
		tx.RetryCount,
		tx.LastRetryAt,
		tx.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	return nil
}

// CompleteWithCommissions persists the COMPLETED transaction state and the
// PAID commission writes in one database transaction. The status guards
// make the operation idempotent: a COMPLETED transaction is never
// re-written, a PAID commission never re-marked.
func (r *transactionRepository) CompleteWithCommissions(ctx context.Context, tx *domain.DisbursementTransaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(ctx, `
		UPDATE disbursement_transactions
		SET status = $2, provider_tx_id = $3, error_message = ''
		WHERE id = $1 AND status <> $2
	`, tx.ID, string(domain.TransactionStatusCompleted), nullString(tx.ProviderTxID))
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}

	now := time.Now()
	_, err = dbTx.ExecContext(ctx, `
		UPDATE commissions
		SET status = $2, paid_at = $3
		WHERE id = ANY($1) AND status <> $2
	`, pq.Array(uuidsToStrings(tx.CommissionIDs)), string(domain.CommissionStatusPaid), now)
	if err != nil {
		return fmt.Errorf("failed to mark commissions paid: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	return nil
}

// CancelPending moves PENDING transactions of the batch to CANCELLED.
// Settled outcomes (COMPLETED/FAILED) are untouched.
func (r *transactionRepository) CancelPending(ctx context.Context, batchID uuid.UUID, reason string) (int, error) {
	query := `
		UPDATE disbursement_transactions
		SET status = $2, error_message = $3
		WHERE batch_id = $1 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		batchID,
		string(domain.TransactionStatusCancelled),
		reason,
		string(domain.TransactionStatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending transactions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read cancel result: %w", err)
	}

	return int(affected), nil
}

// StatsByBatch aggregates transaction counts and the paid amount
func (r *transactionRepository) StatsByBatch(ctx context.Context, batchID uuid.UUID) (*domain.ExecutionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM disbursement_transactions
		WHERE batch_id = $1
	`

	stats := domain.ExecutionStats{BatchID: batchID}
	var paidStr string
	err := r.db.QueryRowContext(ctx, query, batchID).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.Failed,
		&stats.Pending,
		&paidStr,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate batch stats: %w", err)
	}

	paid, err := decimal.NewFromString(paidStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse paid amount: %w", err)
	}
	stats.PaidAmount = paid

	return &stats, nil
}

func scanTransaction(rows *sql.Rows) (*domain.DisbursementTransaction, error) {
	var tx domain.DisbursementTransaction
	var commissionIDs []string
	var providerTxID sql.NullString
	var amountStr, status string
	var lastRetryAt sql.NullTime

	err := rows.Scan(
		&tx.ID,
		&tx.BatchID,
		&tx.AffiliateID,
		pq.Array(&commissionIDs),
		&tx.ProviderRef,
		&providerTxID,
		&tx.PayeeAccount,
		&amountStr,
		&tx.Currency,
		&status,
		&tx.RetryCount,
		&lastRetryAt,
		&tx.ErrorMessage,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ids, err := stringsToUUIDs(commissionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse commission_ids: %w", err)
	}
	tx.CommissionIDs = ids

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	tx.Amount = amount
	tx.Status = domain.TransactionStatus(status)
	if providerTxID.Valid {
		tx.ProviderTxID = providerTxID.String
	}
	tx.LastRetryAt = nullTimePtr(lastRetryAt)

	return &tx, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func stringsToUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(values))
	for i, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
