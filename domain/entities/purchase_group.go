package entities

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PurchaseGroup ties one purchase transaction to its round range and ticket IDs.
// Groups are derived on every reconciliation pass and never stored authoritatively.
type PurchaseGroup struct {
	TxHash      common.Hash
	Player      common.Address
	StartRound  uint64
	EndRound    uint64
	TotalCost   *big.Int
	Timestamp   time.Time
	BlockNumber uint64
	LogIndex    uint

	// DeclaredTickets is the per-round ticket count announced by the purchase logs
	DeclaredTickets map[uint64]uint64
	// RoundTickets holds the ticket IDs aligned to this group, per round
	RoundTickets map[uint64][]uint64

	// Fallback groups collect tickets no purchase log could account for
	Fallback bool
}

// NewPurchaseGroup creates an empty group for a transaction
func NewPurchaseGroup(txHash common.Hash, player common.Address, start, end uint64) *PurchaseGroup {
	return &PurchaseGroup{
		TxHash:          txHash,
		Player:          player,
		StartRound:      start,
		EndRound:        end,
		TotalCost:       new(big.Int),
		DeclaredTickets: make(map[uint64]uint64),
		RoundTickets:    make(map[uint64][]uint64),
	}
}

// Range returns the inclusive round span of the purchase
func (g *PurchaseGroup) Range() RoundRange {
	return RoundRange{Start: g.StartRound, End: g.EndRound}
}

// IsMultiRound returns true when the purchase spans more than one round
func (g *PurchaseGroup) IsMultiRound() bool {
	return g.EndRound > g.StartRound
}

// TicketIDs returns every aligned ticket ID ordered by round then ID
func (g *PurchaseGroup) TicketIDs() []uint64 {
	rounds := make([]uint64, 0, len(g.RoundTickets))
	for r := range g.RoundTickets {
		rounds = append(rounds, r)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })

	var ids []uint64
	for _, r := range rounds {
		ids = append(ids, g.RoundTickets[r]...)
	}
	return ids
}

// TotalDeclared returns the sum of declared ticket counts across rounds
func (g *PurchaseGroup) TotalDeclared() uint64 {
	var total uint64
	for _, c := range g.DeclaredTickets {
		total += c
	}
	return total
}

// Shortfall returns rounds where fewer tickets were aligned than declared
func (g *PurchaseGroup) Shortfall() map[uint64]uint64 {
	missing := make(map[uint64]uint64)
	for round, declared := range g.DeclaredTickets {
		if got := uint64(len(g.RoundTickets[round])); got < declared {
			missing[round] = declared - got
		}
	}
	return missing
}
