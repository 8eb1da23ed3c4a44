package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tradealerts/payout-backend/internal/domain"
)

// lockName is the single named lock guarding disbursement execution
const lockName = "batch-execution"

// executionLockRepository implements domain.ExecutionLockRepository on top
// of a single lock row. The conditional UPDATE makes acquisition atomic:
// concurrent callers race on the row and exactly one wins.
type executionLockRepository struct {
	db *DB
}

// NewExecutionLockRepository creates a new execution lock repository
func NewExecutionLockRepository(db *DB) domain.ExecutionLockRepository {
	return &executionLockRepository{db: db}
}

// Acquire takes the execution lock for holder. Returns false when another
// holder owns it.
func (r *executionLockRepository) Acquire(ctx context.Context, holder string) (bool, error) {
	query := `
		UPDATE disbursement_locks
		SET holder = $2, locked_at = $3
		WHERE name = $1 AND holder IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, lockName, holder, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to acquire execution lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock result: %w", err)
	}

	return affected == 1, nil
}

// Release frees the lock if held by holder. Releasing a lock held by
// someone else is a no-op, so a slow process cannot free its successor's
// lock.
func (r *executionLockRepository) Release(ctx context.Context, holder string) error {
	query := `
		UPDATE disbursement_locks
		SET holder = NULL, locked_at = NULL
		WHERE name = $1 AND holder = $2
	`

	if _, err := r.db.ExecContext(ctx, query, lockName, holder); err != nil {
		return fmt.Errorf("failed to release execution lock: %w", err)
	}

	return nil
}
