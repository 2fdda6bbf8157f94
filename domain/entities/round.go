package entities

import (
	"fmt"
	"math/big"
	"sort"
)

const (
	// NumbersPerTicket is the size of a ticket selection and of a winning draw
	NumbersPerTicket = 6
	MinNumber        = 1
	MaxNumber        = 55
	// BracketCount is one payout tier per match count 1..6
	BracketCount = 6
)

// Numbers is a six-number selection
type Numbers [NumbersPerTicket]uint8

// Sorted returns an ascending copy of the selection
func (n Numbers) Sorted() Numbers {
	out := n
	sort.Slice(out[:], func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks the range and uniqueness of the selection
func (n Numbers) Validate() error {
	seen := make(map[uint8]bool, NumbersPerTicket)
	for _, v := range n {
		if v < MinNumber || v > MaxNumber {
			return fmt.Errorf("number %d out of range %d-%d", v, MinNumber, MaxNumber)
		}
		if seen[v] {
			return fmt.Errorf("duplicate number %d", v)
		}
		seen[v] = true
	}
	return nil
}

// RoundState mirrors the ledger's round lifecycle
type RoundState uint8

const (
	RoundStateOpen      RoundState = 0
	RoundStateFinalized RoundState = 1
)

func (s RoundState) String() string {
	switch s {
	case RoundStateOpen:
		return "open"
	case RoundStateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Bracket is a payout tier keyed by match count
type Bracket struct {
	MatchCount  uint8
	PoolAmount  *big.Int
	WinnerCount uint64
}

// PayoutPerWinner splits the pool evenly with truncation. A bracket with no winners pays nothing.
func (b Bracket) PayoutPerWinner() *big.Int {
	if b.WinnerCount == 0 || b.PoolAmount == nil || b.PoolAmount.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Quo(b.PoolAmount, new(big.Int).SetUint64(b.WinnerCount))
}

// RoundRecord is the ledger's view of a round
type RoundRecord struct {
	RoundID        uint64
	WinningNumbers *Numbers // nil until the round is drawn
	Brackets       [BracketCount]Bracket
	State          RoundState
}

// IsFinalized returns true once winning numbers are published and the round is closed
func (r *RoundRecord) IsFinalized() bool {
	return r.State == RoundStateFinalized && r.WinningNumbers != nil
}

// BracketFor returns the bracket whose match count equals matches
func (r *RoundRecord) BracketFor(matches int) (Bracket, bool) {
	if matches <= 0 {
		return Bracket{}, false
	}
	for _, b := range r.Brackets {
		if int(b.MatchCount) == matches {
			return b, true
		}
	}
	return Bracket{}, false
}
