package entities

import "github.com/ethereum/go-ethereum/common"

// RoundRange is an inclusive span of rounds
type RoundRange struct {
	Start uint64
	End   uint64
}

// Contains reports whether round lies inside the range
func (r RoundRange) Contains(round uint64) bool {
	return round >= r.Start && round <= r.End
}

// Len returns the number of rounds covered
func (r RoundRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Ticket is a player's ticket as recorded by the ledger for one round.
// OwnerGroup and RoundRange are filled in by purchase reconstruction.
type Ticket struct {
	TicketID   uint64
	RoundID    uint64
	Numbers    Numbers
	IsFree     bool
	OwnerGroup common.Hash
	RoundRange RoundRange
}

// Clone returns a shallow copy safe for enrichment
func (t *Ticket) Clone() *Ticket {
	c := *t
	return &c
}

// IsActive reports whether the ticket still participates in a round at or after current
func (t *Ticket) IsActive(current uint64) bool {
	return t.RoundRange.End >= current
}
