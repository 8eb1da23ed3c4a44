package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// auditLogRepository implements domain.AuditLogRepository
type auditLogRepository struct {
	db *DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *DB) domain.AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Create appends an audit entry. The table has no update or delete path.
func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (id, batch_id, action, actor, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var batchID any
	if entry.BatchID != nil {
		batchID = *entry.BatchID
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		batchID,
		entry.Action,
		entry.Actor,
		string(entry.Status),
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// ListByBatch retrieves a batch's audit entries, oldest-first
func (r *auditLogRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.AuditLogEntry, error) {
	query := `
		SELECT id, batch_id, action, actor, status, details, created_at
		FROM audit_log
		WHERE batch_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var entry domain.AuditLogEntry
		var entryBatchID uuid.UUID
		var status string

		err := rows.Scan(&entry.ID, &entryBatchID, &entry.Action, &entry.Actor, &status, &entry.Details, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.BatchID = &entryBatchID
		entry.Status = domain.AuditStatus(status)

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
