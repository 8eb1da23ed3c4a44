package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// batchRepository implements domain.BatchRepository
type batchRepository struct {
	db *DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *DB) domain.BatchRepository {
	return &batchRepository{db: db}
}

const batchColumns = `id, batch_number, payment_count, total_amount, currency, provider_id,
	status, error_message, scheduled_at, executed_at, completed_at, failed_at, created_at`

// Create persists a new batch header
func (r *batchRepository) Create(ctx context.Context, batch *domain.PaymentBatch) error {
	query := `
		INSERT INTO payment_batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		batch.ID,
		batch.BatchNumber,
		batch.PaymentCount,
		batch.TotalAmount.String(),
		batch.Currency,
		batch.ProviderID,
		string(batch.Status),
		batch.ErrorMessage,
		batch.ScheduledAt,
		batch.ExecutedAt,
		batch.CompletedAt,
		batch.FailedAt,
		batch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	return nil
}

// GetByID retrieves a batch header by its ID
func (r *batchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM payment_batches WHERE id = $1`

	batch, err := scanBatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch %s: %w", id, domain.ErrBatchNotFound)
		}
		return nil, fmt.Errorf("failed to get batch by ID: %w", err)
	}

	return batch, nil
}

// List retrieves batches newest-first, optionally filtered by status
func (r *batchRepository) List(ctx context.Context, statusFilter domain.BatchStatus, limit int) ([]*domain.PaymentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM payment_batches`
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE status = $1`
		args = append(args, string(statusFilter))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.PaymentBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}

	return batches, rows.Err()
}

// Update persists the batch's status, error message and lifecycle timestamps
func (r *batchRepository) Update(ctx context.Context, batch *domain.PaymentBatch) error {
	query := `
		UPDATE payment_batches
		SET status = $2, error_message = $3, scheduled_at = $4, executed_at = $5,
			completed_at = $6, failed_at = $7
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		batch.ID,
		string(batch.Status),
		batch.ErrorMessage,
		batch.ScheduledAt,
		batch.ExecutedAt,
		batch.CompletedAt,
		batch.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}

	return nil
}

// Delete removes a batch; transactions and audit entries cascade via FK
func (r *batchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payment_batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("batch %s: %w", id, domain.ErrBatchNotFound)
	}

	return nil
}

// ClaimForExecution is the atomic compare-and-swap that moves the batch to
// PROCESSING. The WHERE clause makes concurrent claimers lose cleanly: only
// one UPDATE can see an executable status.
func (r *batchRepository) ClaimForExecution(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE payment_batches
		SET status = $2, executed_at = $3, error_message = ''
		WHERE id = $1 AND status IN ('PENDING', 'QUEUED', 'FAILED')
	`

	result, err := r.db.ExecContext(ctx, query, id, string(domain.BatchStatusProcessing), at)
	if err != nil {
		return false, fmt.Errorf("failed to claim batch for execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return affected == 1, nil
}

// ActiveExists reports whether any batch other than exclude is PROCESSING
func (r *batchRepository) ActiveExists(ctx context.Context, exclude uuid.UUID) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_batches WHERE status = $1 AND id <> $2`,
		string(domain.BatchStatusProcessing), exclude,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count processing batches: %w", err)
	}

	return count > 0, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning
type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (*domain.PaymentBatch, error) {
	var batch domain.PaymentBatch
	var totalStr, status string
	var scheduledAt, executedAt, completedAt, failedAt sql.NullTime

	err := row.Scan(
		&batch.ID,
		&batch.BatchNumber,
		&batch.PaymentCount,
		&totalStr,
		&batch.Currency,
		&batch.ProviderID,
		&status,
		&batch.ErrorMessage,
		&scheduledAt,
		&executedAt,
		&completedAt,
		&failedAt,
		&batch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_amount: %w", err)
	}
	batch.TotalAmount = total
	batch.Status = domain.BatchStatus(status)
	batch.ScheduledAt = nullTimePtr(scheduledAt)
	batch.ExecutedAt = nullTimePtr(executedAt)
	batch.CompletedAt = nullTimePtr(completedAt)
	batch.FailedAt = nullTimePtr(failedAt)

	return &batch, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
