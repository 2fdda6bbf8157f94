package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimStatus classifies a round in the player's history
type ClaimStatus string

const (
	ClaimStatusNoWin     ClaimStatus = "no_win"
	ClaimStatusClaimed   ClaimStatus = "claimed"
	ClaimStatusClaimable ClaimStatus = "claimable"
)

// ClaimRecord is the resolved claim state of one round
type ClaimRecord struct {
	RoundID    uint64
	AmountOwed *big.Int
	Status     ClaimStatus
	Claimed    bool
	// TxRef is a display hint from the local receipt cache or a claim log
	TxRef *common.Hash
	// QueryFailed is set when the live status check errored and the record fell back to claimable
	QueryFailed bool
}

// MarkClaimed flips the record to claimed. Claimed never reverts to false.
func (c *ClaimRecord) MarkClaimed() {
	c.Claimed = true
	c.Status = ClaimStatusClaimed
}

// IsClaimable returns true when the round is owed and not yet claimed
func (c *ClaimRecord) IsClaimable() bool {
	return c.Status == ClaimStatusClaimable
}

// ClaimResolution is the classified round history of a player
type ClaimResolution struct {
	History        []*ClaimRecord
	Claimable      []*ClaimRecord
	TotalClaimable *big.Int
	QueryFailures  int
	// StaleReceipts lists cached receipts the ledger no longer confirms
	StaleReceipts []uint64
	ResolvedAt    time.Time
}

// ClaimSelection is a round queued for claiming with the amount expected from it
type ClaimSelection struct {
	RoundID uint64
	Amount  *big.Int
}
