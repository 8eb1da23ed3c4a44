package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionStatus represents the settlement status of a commission.
// Commissions are owned by the affiliate subsystem; the core only moves
// them to PAID on a confirmed payment and otherwise leaves them untouched.
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "PENDING"
	CommissionStatusApproved CommissionStatus = "APPROVED"
	CommissionStatusPaid     CommissionStatus = "PAID"
)

// Commission is one earned affiliate commission awaiting payout.
type Commission struct {
	ID          uuid.UUID
	AffiliateID uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Status      CommissionStatus
	EarnedAt    time.Time
	PaidAt      *time.Time
}

// CommissionAggregate summarizes one affiliate's owed commissions for a
// disbursement run. It is input to batch creation, not persisted by the
// core. CanPayout reflects upstream eligibility (minimum payout threshold,
// KYC status); ineligible aggregates are filtered input, not an invariant
// of this subsystem.
type CommissionAggregate struct {
	AffiliateID      uuid.UUID
	CommissionIDs    []uuid.UUID
	TotalAmount      decimal.Decimal
	CommissionCount  int
	OldestCommission time.Time
	CanPayout        bool
}
