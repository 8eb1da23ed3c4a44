package domain

import "github.com/google/uuid"

// PayoutAccount is an affiliate's resolved payout destination on the
// payment rail. Owned by the affiliate subsystem; the core only reads it
// when materializing batch transactions.
type PayoutAccount struct {
	AffiliateID uuid.UUID
	// Address is the on-rail destination (e.g. a wallet address)
	Address string
	// Network identifies the rail network the address belongs to
	Network string
	Active  bool
}
