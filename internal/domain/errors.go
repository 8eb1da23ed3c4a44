package domain

import "errors"

var (
	// ErrBatchNotFound is returned when the requested batch does not exist.
	// Keeping this sentinel in domain lets adapters map it consistently to 404.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrNoPayableAffiliates is returned when batch creation receives no
	// aggregate with CanPayout set.
	ErrNoPayableAffiliates = errors.New("no payable affiliates")
	// ErrInvalidBatchStatus signals the batch is in the wrong state for the
	// requested transition (e.g. executing a COMPLETED batch).
	ErrInvalidBatchStatus = errors.New("invalid batch status")
	// ErrAnotherBatchProcessing enforces the system-wide single-flight rule:
	// at most one batch may be PROCESSING at any time.
	ErrAnotherBatchProcessing = errors.New("another batch is processing")
	// ErrCannotDeleteActiveBatch guards PROCESSING/COMPLETED batches: money
	// has moved or is moving, deletion would desynchronize the audit trail.
	ErrCannotDeleteActiveBatch = errors.New("cannot delete active batch")
	// ErrPayoutAccountNotFound is returned by the payout account lookup when
	// an affiliate has no resolvable account on the payment rail.
	ErrPayoutAccountNotFound = errors.New("payout account not found")
)
