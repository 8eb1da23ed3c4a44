package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradealerts/payout-backend/internal/adapter/api"
	"github.com/tradealerts/payout-backend/internal/adapter/provider"
	"github.com/tradealerts/payout-backend/internal/adapter/repository/postgres"
	"github.com/tradealerts/payout-backend/internal/domain"
	"github.com/tradealerts/payout-backend/internal/usecase/batch"
	"github.com/tradealerts/payout-backend/internal/usecase/orchestrator"
	"github.com/tradealerts/payout-backend/internal/usecase/seeder"
)

const (
	defaultHTTPPort  = "8080"
	defaultCurrency  = "USDT"
	defaultMinPayout = "50"
)

func main() {
	// 1. Setup Database
	dbConnStr := os.Getenv("DB_CONN_STR")
	if dbConnStr == "" {
		// If explicit string is missing, build it from individual vars (Docker friendly)
		host := envOr("DB_HOST", "localhost")
		port := envOr("DB_PORT", "5432")
		user := envOr("DB_USER", "postgres")
		password := envOr("DB_PASSWORD", "postgres")
		dbname := envOr("DB_NAME", "payouts")

		dbConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}

	// Add 2-second delay to ensure Postgres is up (Simple retry)
	time.Sleep(2 * time.Second)

	db, err := postgres.NewDB(dbConnStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 2. Initialize Repositories (Postgres)
	batchRepo := postgres.NewBatchRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	commissionRepo := postgres.NewCommissionRepository(db)
	payoutAccountRepo := postgres.NewPayoutAccountRepository(db)
	auditRepo := postgres.NewAuditLogRepository(db)
	lockRepo := postgres.NewExecutionLockRepository(db)

	// 3. Initialize Payment Provider
	paymentProvider, err := buildProvider()
	if err != nil {
		log.Fatalf("Failed to configure payment provider: %v", err)
	}
	log.Printf("Using payment provider %q", paymentProvider.Name())

	// 4. Initialize Services (Use Cases)
	minPayout, err := decimal.NewFromString(envOr("MIN_PAYOUT", defaultMinPayout))
	if err != nil {
		log.Fatalf("Invalid MIN_PAYOUT: %v", err)
	}
	currency := envOr("DEFAULT_CURRENCY", defaultCurrency)

	batchService := batch.NewBatchService(
		batchRepo, transactionRepo, commissionRepo, payoutAccountRepo, auditRepo,
		currency, minPayout,
	)
	orchestratorService := orchestrator.NewOrchestratorService(
		batchRepo, transactionRepo, auditRepo, lockRepo, paymentProvider,
	)

	// Optionally seed demo affiliates for local runs
	if envOr("SEED_DEMO_DATA", "") == "true" {
		demoSeeder := seeder.NewDemoSeeder(commissionRepo, payoutAccountRepo, currency)
		if err := demoSeeder.Seed(context.Background()); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		log.Println("Demo affiliates seeded successfully")
	}

	// 5. Start HTTP Server
	httpPort := envOr("HTTP_PORT", defaultHTTPPort)
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           api.NewRouter(batchService, orchestratorService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve HTTP server: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(srv)
}

// buildProvider selects the payment rail adapter from environment config.
// USE_MOCK_PROVIDER=true wires the simulated rail for local runs.
func buildProvider() (domain.PaymentProvider, error) {
	if envOr("USE_MOCK_PROVIDER", "") == "true" {
		failureRate, err := strconv.ParseFloat(envOr("MOCK_FAILURE_RATE", "0"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MOCK_FAILURE_RATE: %w", err)
		}
		latencyMs, err := strconv.Atoi(envOr("MOCK_LATENCY_MS", "0"))
		if err != nil {
			return nil, fmt.Errorf("invalid MOCK_LATENCY_MS: %w", err)
		}
		return provider.NewMockProvider(time.Duration(latencyMs)*time.Millisecond, failureRate, time.Now().UnixNano()), nil
	}

	endpoint := os.Getenv("PROVIDER_URL")
	if endpoint == "" {
		return nil, fmt.Errorf("PROVIDER_URL is required unless USE_MOCK_PROVIDER=true")
	}
	cfg := provider.Config{
		Name:     envOr("PROVIDER_NAME", "chainpay"),
		Endpoint: endpoint,
		APIKey:   os.Getenv("PROVIDER_API_KEY"),
	}
	return provider.NewHTTPProvider(cfg, &http.Client{Timeout: 30 * time.Second}), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")
}
