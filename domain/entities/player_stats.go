package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LifetimeStats summarizes a player's purchases and winnings
type LifetimeStats struct {
	TicketsBought uint64
	FreeTickets   uint64
	Purchases     int
	TotalSpent    *big.Int
	TotalClaimed  *big.Int
	TotalPending  *big.Int
	RoundsWon     int
}

// ProfitLoss returns claimed winnings minus spend
func (s *LifetimeStats) ProfitLoss() *big.Int {
	return new(big.Int).Sub(s.TotalClaimed, s.TotalSpent)
}

// PotentialProfitLoss includes winnings not yet claimed
func (s *LifetimeStats) PotentialProfitLoss() *big.Int {
	pl := s.ProfitLoss()
	return pl.Add(pl, s.TotalPending)
}

// ROIBasisPoints returns potential P/L over spend in basis points, 0 when nothing was spent
func (s *LifetimeStats) ROIBasisPoints() int64 {
	if s.TotalSpent == nil || s.TotalSpent.Sign() == 0 {
		return 0
	}
	bps := new(big.Int).Mul(s.PotentialProfitLoss(), big.NewInt(10_000))
	return bps.Quo(bps, s.TotalSpent).Int64()
}

// ReconciliationSnapshot is the full derived view of a player at ResolvedAt
type ReconciliationSnapshot struct {
	Player         common.Address
	Events         []*RawEvent
	Groups         []*PurchaseGroup
	Tickets        []*Ticket
	Rounds         map[uint64]*RoundRecord
	Entitlements   []*Entitlement
	TicketHistory  map[uint64][]*Entitlement
	History        []*ClaimRecord
	Claimable      []*ClaimRecord
	TotalClaimable *big.Int
	Stats          *LifetimeStats
	Warnings       []string
	ResolvedAt     time.Time
}

// IsStale reports whether the snapshot is older than maxAge at now
func (s *ReconciliationSnapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	if s == nil || s.ResolvedAt.IsZero() {
		return true
	}
	return now.Sub(s.ResolvedAt) > maxAge
}

// Selections returns the claimable rounds, optionally restricted to roundIDs
func (s *ReconciliationSnapshot) Selections(roundIDs []uint64) (selected []ClaimSelection, skipped []uint64) {
	claimable := make(map[uint64]*ClaimRecord, len(s.Claimable))
	for _, c := range s.Claimable {
		claimable[c.RoundID] = c
	}

	if len(roundIDs) == 0 {
		for _, c := range s.Claimable {
			selected = append(selected, ClaimSelection{RoundID: c.RoundID, Amount: c.AmountOwed})
		}
		return selected, nil
	}

	for _, id := range roundIDs {
		c, ok := claimable[id]
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		selected = append(selected, ClaimSelection{RoundID: c.RoundID, Amount: c.AmountOwed})
	}
	return selected, skipped
}
