package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradealerts/payout-backend/internal/domain"
)

// Fixed UUIDs so repeated seeding never duplicates demo data
var (
	DEMO_AFFILIATE_ALPHA = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	DEMO_AFFILIATE_BETA  = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	DEMO_AFFILIATE_GAMMA = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
)

// DemoSeeder populates demo affiliates for local runs: payout accounts
// plus enough approved commissions to form a payable batch. Gamma stays
// below the payout threshold on purpose, so the eligibility filter is
// visible in seeded data.
type DemoSeeder struct {
	commissionRepo domain.CommissionRepository
	accountRepo    domain.PayoutAccountRepository
	currency       string
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(commissionRepo domain.CommissionRepository, accountRepo domain.PayoutAccountRepository, currency string) *DemoSeeder {
	return &DemoSeeder{
		commissionRepo: commissionRepo,
		accountRepo:    accountRepo,
		currency:       currency,
	}
}

// Seed ensures the demo affiliates exist in the database. Safe to run on
// every startup; existing rows are left as they are.
func (s *DemoSeeder) Seed(ctx context.Context) error {
	accounts := []*domain.PayoutAccount{
		{AffiliateID: DEMO_AFFILIATE_ALPHA, Address: "TDemoAlphaPayoutAddress0001", Network: "TRC20", Active: true},
		{AffiliateID: DEMO_AFFILIATE_BETA, Address: "TDemoBetaPayoutAddress00001", Network: "TRC20", Active: true},
		{AffiliateID: DEMO_AFFILIATE_GAMMA, Address: "TDemoGammaPayoutAddress0001", Network: "TRC20", Active: true},
	}

	for _, account := range accounts {
		if err := s.accountRepo.Upsert(ctx, account); err != nil {
			return err
		}
	}

	return s.commissionRepo.CreateAll(ctx, s.demoCommissions())
}

func (s *DemoSeeder) demoCommissions() []domain.Commission {
	earned := time.Now().UTC().Add(-30 * 24 * time.Hour)

	plan := []struct {
		seq         byte
		affiliateID uuid.UUID
		amount      int64
	}{
		{1, DEMO_AFFILIATE_ALPHA, 45},
		{2, DEMO_AFFILIATE_ALPHA, 30},
		{3, DEMO_AFFILIATE_BETA, 120},
		{4, DEMO_AFFILIATE_GAMMA, 10},
	}

	commissions := make([]domain.Commission, 0, len(plan))
	for i, p := range plan {
		// deterministic ids derived from the affiliate id
		id := p.affiliateID
		id[0] = p.seq

		commissions = append(commissions, domain.Commission{
			ID:          id,
			AffiliateID: p.affiliateID,
			Amount:      decimal.NewFromInt(p.amount),
			Currency:    s.currency,
			Status:      domain.CommissionStatusApproved,
			EarnedAt:    earned.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	return commissions
}
