package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditStatus classifies an audit log entry
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "SUCCESS"
	AuditStatusFailure AuditStatus = "FAILURE"
	AuditStatusWarning AuditStatus = "WARNING"
	AuditStatusInfo    AuditStatus = "INFO"
)

// AuditLogEntry is an append-only record of a significant state change
// (batch created, status changed, transaction retried, batch cancelled).
// Entries are never updated or deleted and back after-the-fact
// reconciliation.
type AuditLogEntry struct {
	ID        uuid.UUID
	BatchID   *uuid.UUID
	Action    string
	Actor     string
	Status    AuditStatus
	Details   string
	CreatedAt time.Time
}

// NewAuditLogEntry builds an entry for a batch-scoped action. Actor may be
// empty for system-initiated actions; it is stored as "system".
func NewAuditLogEntry(batchID *uuid.UUID, action, actor string, status AuditStatus, details string) *AuditLogEntry {
	if actor == "" {
		actor = "system"
	}
	return &AuditLogEntry{
		ID:        uuid.New(),
		BatchID:   batchID,
		Action:    action,
		Actor:     actor,
		Status:    status,
		Details:   details,
		CreatedAt: time.Now(),
	}
}
