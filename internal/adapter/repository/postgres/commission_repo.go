package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// commissionRepository implements domain.CommissionRepository
type commissionRepository struct {
	db *DB
}

// NewCommissionRepository creates a new commission repository
func NewCommissionRepository(db *DB) domain.CommissionRepository {
	return &commissionRepository{db: db}
}

// AggregateOwed groups unpaid approved commissions per affiliate. The
// eligibility flag is computed against minPayout; aggregates below the
// threshold are still returned so callers can report them.
func (r *commissionRepository) AggregateOwed(ctx context.Context, minPayout decimal.Decimal) ([]domain.CommissionAggregate, error) {
	query := `
		SELECT affiliate_id, ARRAY_AGG(id::text ORDER BY earned_at), SUM(amount), COUNT(*), MIN(earned_at)
		FROM commissions
		WHERE status = $1
		GROUP BY affiliate_id
		ORDER BY MIN(earned_at)
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.CommissionStatusApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate owed commissions: %w", err)
	}
	defer rows.Close()

	var aggregates []domain.CommissionAggregate
	for rows.Next() {
		var agg domain.CommissionAggregate
		var commissionIDs []string
		var totalStr string

		err := rows.Scan(&agg.AffiliateID, pq.Array(&commissionIDs), &totalStr, &agg.CommissionCount, &agg.OldestCommission)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission aggregate: %w", err)
		}

		ids, err := stringsToUUIDs(commissionIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to parse commission ids: %w", err)
		}
		agg.CommissionIDs = ids

		total, err := decimal.NewFromString(totalStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse aggregate amount: %w", err)
		}
		agg.TotalAmount = total
		agg.CanPayout = total.GreaterThanOrEqual(minPayout)

		aggregates = append(aggregates, agg)
	}

	return aggregates, rows.Err()
}

// CreateAll persists commissions, skipping ids that already exist
func (r *commissionRepository) CreateAll(ctx context.Context, commissions []domain.Commission) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO commissions (id, affiliate_id, amount, currency, status, earned_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	for _, c := range commissions {
		_, err := tx.ExecContext(ctx, query,
			c.ID, c.AffiliateID, c.Amount.String(), c.Currency, string(c.Status), c.EarnedAt, c.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert commission %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}
