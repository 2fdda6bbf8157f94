package entities

import "math/big"

// Entitlement is the prize owed to one ticket for one finalized round
type Entitlement struct {
	RoundID  uint64
	TicketID uint64
	Matches  int
	Payout   *big.Int
}

// IsWinning returns true when the entitlement pays out
func (e *Entitlement) IsWinning() bool {
	return e.Payout != nil && e.Payout.Sign() > 0
}

// RoundAmount is the total a player is owed for one round
type RoundAmount struct {
	RoundID uint64
	Amount  *big.Int
}
