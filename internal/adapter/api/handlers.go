package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradealerts/payout-backend/internal/domain"
	"github.com/tradealerts/payout-backend/internal/usecase/batch"
	"github.com/tradealerts/payout-backend/internal/usecase/orchestrator"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	batchSvc        *batch.BatchService
	orchestratorSvc *orchestrator.OrchestratorService
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the disbursement error taxonomy onto HTTP codes
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoPayableAffiliates):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidBatchStatus),
		errors.Is(err, domain.ErrAnotherBatchProcessing),
		errors.Is(err, domain.ErrCannotDeleteActiveBatch):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseBatchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id: "+err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// --- views ---

type transactionView struct {
	ID            uuid.UUID   `json:"id"`
	AffiliateID   uuid.UUID   `json:"affiliate_id"`
	CommissionIDs []uuid.UUID `json:"commission_ids"`
	ProviderTxID  string      `json:"provider_tx_id,omitempty"`
	PayeeAccount  string      `json:"payee_account,omitempty"`
	Amount        string      `json:"amount"`
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	RetryCount    int         `json:"retry_count"`
	ErrorMessage  string      `json:"error_message,omitempty"`
}

type auditView struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Status    string    `json:"status"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type batchView struct {
	ID           uuid.UUID         `json:"id"`
	BatchNumber  string            `json:"batch_number"`
	PaymentCount int               `json:"payment_count"`
	TotalAmount  string            `json:"total_amount"`
	Currency     string            `json:"currency"`
	ProviderID   string            `json:"provider_id"`
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
	ExecutedAt   *time.Time        `json:"executed_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	FailedAt     *time.Time        `json:"failed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Transactions []transactionView `json:"transactions,omitempty"`
	AuditLog     []auditView       `json:"audit_log,omitempty"`
}

func toBatchView(b *domain.PaymentBatch) batchView {
	view := batchView{
		ID:           b.ID,
		BatchNumber:  b.BatchNumber,
		PaymentCount: b.PaymentCount,
		TotalAmount:  b.TotalAmount.String(),
		Currency:     b.Currency,
		ProviderID:   b.ProviderID,
		Status:       string(b.Status),
		ErrorMessage: b.ErrorMessage,
		ScheduledAt:  b.ScheduledAt,
		ExecutedAt:   b.ExecutedAt,
		CompletedAt:  b.CompletedAt,
		FailedAt:     b.FailedAt,
		CreatedAt:    b.CreatedAt,
	}
	for _, tx := range b.Transactions {
		view.Transactions = append(view.Transactions, transactionView{
			ID:            tx.ID,
			AffiliateID:   tx.AffiliateID,
			CommissionIDs: tx.CommissionIDs,
			ProviderTxID:  tx.ProviderTxID,
			PayeeAccount:  tx.PayeeAccount,
			Amount:        tx.Amount.String(),
			Currency:      tx.Currency,
			Status:        string(tx.Status),
			RetryCount:    tx.RetryCount,
			ErrorMessage:  tx.ErrorMessage,
		})
	}
	for _, entry := range b.AuditLog {
		view.AuditLog = append(view.AuditLog, auditView{
			Action:    entry.Action,
			Actor:     entry.Actor,
			Status:    string(entry.Status),
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		})
	}
	return view
}

type executionResultView struct {
	Success      bool      `json:"success"`
	BatchID      uuid.UUID `json:"batch_id"`
	BatchNumber  string    `json:"batch_number,omitempty"`
	TotalAmount  string    `json:"total_amount"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	SkippedCount int       `json:"skipped_count"`
	Errors       []string  `json:"errors,omitempty"`
	Message      string    `json:"message,omitempty"`
}

func toExecutionResultView(res *orchestrator.ExecutionResult) executionResultView {
	return executionResultView{
		Success:      res.Success,
		BatchID:      res.BatchID,
		BatchNumber:  res.BatchNumber,
		TotalAmount:  res.TotalAmount.String(),
		SuccessCount: res.SuccessCount,
		FailedCount:  res.FailedCount,
		SkippedCount: res.SkippedCount,
		Errors:       res.Errors,
		Message:      res.Message,
	}
}

// --- handlers ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type aggregateRequest struct {
	AffiliateID      uuid.UUID   `json:"affiliate_id"`
	CommissionIDs    []uuid.UUID `json:"commission_ids"`
	TotalAmount      string      `json:"total_amount"`
	CommissionCount  int         `json:"commission_count"`
	OldestCommission time.Time   `json:"oldest_commission"`
	CanPayout        bool        `json:"can_payout"`
}

type createBatchRequest struct {
	ProviderID string             `json:"provider_id"`
	Actor      string             `json:"actor"`
	FromOwed   bool               `json:"from_owed"`
	Aggregates []aggregateRequest `json:"aggregates"`
}

func (h *Handlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	var result *batch.CreateBatchResult
	var err error
	if req.FromOwed {
		result, err = h.batchSvc.CreateBatchFromOwed(r.Context(), req.ProviderID, req.Actor)
	} else {
		aggregates := make([]domain.CommissionAggregate, 0, len(req.Aggregates))
		for _, agg := range req.Aggregates {
			amount, parseErr := decimal.NewFromString(agg.TotalAmount)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "invalid total_amount: "+parseErr.Error())
				return
			}
			aggregates = append(aggregates, domain.CommissionAggregate{
				AffiliateID:      agg.AffiliateID,
				CommissionIDs:    agg.CommissionIDs,
				TotalAmount:      amount,
				CommissionCount:  agg.CommissionCount,
				OldestCommission: agg.OldestCommission,
				CanPayout:        agg.CanPayout,
			})
		}
		result, err = h.batchSvc.CreateBatch(r.Context(), aggregates, req.ProviderID, req.Actor)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"batch":             toBatchView(result.Batch),
		"transaction_count": result.TransactionCount,
	})
}

func (h *Handlers) ListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	batches, err := h.batchSvc.GetAllBatches(r.Context(), domain.BatchStatus(q.Get("status")), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]batchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, toBatchView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": views})
}

func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	b, err := h.batchSvc.GetBatchByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchView(b))
}

func (h *Handlers) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	if err := h.batchSvc.DeleteBatch(r.Context(), id, r.URL.Query().Get("actor")); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type updateStatusRequest struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// UpdateBatchStatus is the operator escape hatch, e.g. releasing a batch
// orphaned in PROCESSING after a crash.
func (h *Handlers) UpdateBatchStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	b, err := h.batchSvc.UpdateBatchStatus(r.Context(), id, domain.BatchStatus(req.Status), req.ErrorMessage)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchView(b))
}

func (h *Handlers) ExecuteBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	result, err := h.orchestratorSvc.ExecuteBatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExecutionResultView(result))
}

func (h *Handlers) RetryBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	result, err := h.orchestratorSvc.RetryFailedTransactions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExecutionResultView(result))
}

type cancelBatchRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (h *Handlers) CancelBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	var req cancelBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	b, err := h.batchSvc.CancelBatch(r.Context(), id, req.Reason, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchView(b))
}

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	summary, err := h.orchestratorSvc.GetExecutionSummary(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":     summary.BatchID,
		"batch_number": summary.BatchNumber,
		"status":       string(summary.Status),
		"total_amount": summary.TotalAmount.String(),
		"stats": map[string]any{
			"total":       summary.Stats.Total,
			"completed":   summary.Stats.Completed,
			"failed":      summary.Stats.Failed,
			"pending":     summary.Stats.Pending,
			"paid_amount": summary.Stats.PaidAmount.String(),
		},
	})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBatchID(w, r)
	if !ok {
		return
	}

	stats, err := h.orchestratorSvc.GetExecutionStats(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":    stats.BatchID,
		"total":       stats.Total,
		"completed":   stats.Completed,
		"failed":      stats.Failed,
		"pending":     stats.Pending,
		"paid_amount": stats.PaidAmount.String(),
	})
}

func (h *Handlers) IsProcessing(w http.ResponseWriter, r *http.Request) {
	processing, err := h.batchSvc.IsBatchProcessing(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"processing": processing})
}
