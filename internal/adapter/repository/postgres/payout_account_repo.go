package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// payoutAccountRepository implements domain.PayoutAccountRepository
type payoutAccountRepository struct {
	db *DB
}

// NewPayoutAccountRepository creates a new payout account repository
func NewPayoutAccountRepository(db *DB) domain.PayoutAccountRepository {
	return &payoutAccountRepository{db: db}
}

// GetByAffiliateID returns the affiliate's active payout account
func (r *payoutAccountRepository) GetByAffiliateID(ctx context.Context, affiliateID uuid.UUID) (*domain.PayoutAccount, error) {
	query := `
		SELECT affiliate_id, address, network, active
		FROM payout_accounts
		WHERE affiliate_id = $1 AND active
	`

	var account domain.PayoutAccount
	err := r.db.QueryRowContext(ctx, query, affiliateID).Scan(
		&account.AffiliateID,
		&account.Address,
		&account.Network,
		&account.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("affiliate %s: %w", affiliateID, domain.ErrPayoutAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get payout account: %w", err)
	}

	return &account, nil
}

// Upsert creates or replaces the affiliate's payout account
func (r *payoutAccountRepository) Upsert(ctx context.Context, account *domain.PayoutAccount) error {
	query := `
		INSERT INTO payout_accounts (affiliate_id, address, network, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (affiliate_id) DO UPDATE
		SET address = EXCLUDED.address, network = EXCLUDED.network, active = EXCLUDED.active
	`

	_, err := r.db.ExecContext(ctx, query, account.AffiliateID, account.Address, account.Network, account.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert payout account: %w", err)
	}

	return nil
}
