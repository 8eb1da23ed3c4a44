package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tradealerts/payout-backend/internal/usecase/batch"
	"github.com/tradealerts/payout-backend/internal/usecase/orchestrator"
)

// NewRouter creates the Chi router exposing the disbursement caller
// contract to the surrounding application (admin tooling, schedulers).
func NewRouter(batchSvc *batch.BatchService, orchestratorSvc *orchestrator.OrchestratorService) http.Handler {
	h := &Handlers{
		batchSvc:        batchSvc,
		orchestratorSvc: orchestratorSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1/batches", func(r chi.Router) {
		r.Post("/", h.CreateBatch)
		r.Get("/", h.ListBatches)
		r.Get("/processing", h.IsProcessing)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetBatch)
			r.Delete("/", h.DeleteBatch)
			r.Patch("/status", h.UpdateBatchStatus)
			r.Post("/execute", h.ExecuteBatch)
			r.Post("/retry", h.RetryBatch)
			r.Post("/cancel", h.CancelBatch)
			r.Get("/summary", h.GetSummary)
			r.Get("/stats", h.GetStats)
		})
	})

	return r
}
