package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection and ensures the disbursement
// schema exists.
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=payouts sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payment_batches (
			id UUID PRIMARY KEY,
			batch_number TEXT UNIQUE NOT NULL,
			payment_count INTEGER NOT NULL,
			total_amount NUMERIC(18,8) NOT NULL,
			currency TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			scheduled_at TIMESTAMPTZ,
			executed_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			failed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_batches_status ON payment_batches(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_batches_created_at ON payment_batches(created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS disbursement_transactions (
			id UUID PRIMARY KEY,
			batch_id UUID NOT NULL REFERENCES payment_batches(id) ON DELETE CASCADE,
			affiliate_id UUID NOT NULL,
			commission_ids TEXT[] NOT NULL DEFAULT '{}',
			provider_ref TEXT NOT NULL,
			provider_tx_id TEXT,
			payee_account TEXT NOT NULL DEFAULT '',
			amount NUMERIC(18,8) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_retry_at TIMESTAMPTZ,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_disbursement_transactions_batch ON disbursement_transactions(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_disbursement_transactions_status ON disbursement_transactions(status)`,

		`CREATE TABLE IF NOT EXISTS commissions (
			id UUID PRIMARY KEY,
			affiliate_id UUID NOT NULL,
			amount NUMERIC(18,8) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			earned_at TIMESTAMPTZ NOT NULL,
			paid_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_commissions_affiliate ON commissions(affiliate_id)`,
		`CREATE INDEX IF NOT EXISTS idx_commissions_status ON commissions(status)`,

		`CREATE TABLE IF NOT EXISTS payout_accounts (
			affiliate_id UUID PRIMARY KEY,
			address TEXT NOT NULL,
			network TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id UUID PRIMARY KEY,
			batch_id UUID REFERENCES payment_batches(id) ON DELETE CASCADE,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			status TEXT NOT NULL,
			details TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_batch ON audit_log(batch_id)`,

		// single named lock row guarding batch execution across processes
		`CREATE TABLE IF NOT EXISTS disbursement_locks (
			name TEXT PRIMARY KEY,
			holder TEXT,
			locked_at TIMESTAMPTZ
		)`,
		`INSERT INTO disbursement_locks (name) VALUES ('batch-execution') ON CONFLICT (name) DO NOTHING`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %.60q: %w", stmt, err)
		}
	}

	return nil
}
