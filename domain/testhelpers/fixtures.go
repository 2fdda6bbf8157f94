package testhelpers

import (
	"fmt"
	"math/big"
	"time"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// TestPlayer is the default player address used by fixtures
var TestPlayer = common.HexToAddress("0x00000000000000000000000000000000000000a1")

// TxHash builds a deterministic transaction hash from a label
func TxHash(label string) common.Hash {
	return common.BytesToHash([]byte(label))
}

// SingleRoundPurchase creates a single-round purchase event
func SingleRoundPurchase(tx string, block uint64, logIndex uint, round, count uint64, cost int64) *entities.RawEvent {
	return &entities.RawEvent{
		Kind:         entities.EventKindPurchaseSingle,
		TxHash:       TxHash(tx),
		BlockNumber:  block,
		LogIndex:     logIndex,
		Player:       TestPlayer,
		RoundIDs:     []uint64{round},
		TicketCounts: []uint64{count},
		AmountSpent:  big.NewInt(cost),
		Timestamp:    time.Unix(int64(block)*12, 0).UTC(),
	}
}

// MultiRoundPurchase creates a multi-round purchase event with count tickets in each round of [start, end]
func MultiRoundPurchase(tx string, block uint64, logIndex uint, start, end, count uint64, cost int64) *entities.RawEvent {
	ev := &entities.RawEvent{
		Kind:        entities.EventKindPurchaseMulti,
		TxHash:      TxHash(tx),
		BlockNumber: block,
		LogIndex:    logIndex,
		Player:      TestPlayer,
		AmountSpent: big.NewInt(cost),
		Timestamp:   time.Unix(int64(block)*12, 0).UTC(),
	}
	for r := start; r <= end; r++ {
		ev.RoundIDs = append(ev.RoundIDs, r)
		ev.TicketCounts = append(ev.TicketCounts, count)
	}
	return ev
}

// ClaimEvent creates a claim log entry
func ClaimEvent(tx string, block uint64, logIndex uint, round uint64, amount int64) *entities.RawEvent {
	return &entities.RawEvent{
		Kind:         entities.EventKindClaim,
		TxHash:       TxHash(tx),
		BlockNumber:  block,
		LogIndex:     logIndex,
		Player:       TestPlayer,
		RoundIDs:     []uint64{round},
		TicketCounts: []uint64{0},
		AmountSpent:  big.NewInt(amount),
	}
}

// NewTicket creates a ticket recorded in round
func NewTicket(id, round uint64, numbers entities.Numbers) *entities.Ticket {
	return &entities.Ticket{TicketID: id, RoundID: round, Numbers: numbers}
}

// SequentialTickets creates n tickets in round with IDs starting at firstID
func SequentialTickets(round, firstID uint64, n int) []*entities.Ticket {
	tickets := make([]*entities.Ticket, 0, n)
	for i := 0; i < n; i++ {
		id := firstID + uint64(i)
		base := uint8(id%40) + 1
		tickets = append(tickets, NewTicket(id, round, entities.Numbers{base, base + 1, base + 2, base + 3, base + 4, base + 5}))
	}
	return tickets
}

// FinalizedRound creates a finalized round whose bracket i pays pool[i] split among winners[i]
func FinalizedRound(id uint64, winning entities.Numbers, pools [6]int64, winners [6]uint64) *entities.RoundRecord {
	r := &entities.RoundRecord{
		RoundID:        id,
		WinningNumbers: &winning,
		State:          entities.RoundStateFinalized,
	}
	for i := range r.Brackets {
		r.Brackets[i] = entities.Bracket{
			MatchCount:  uint8(i + 1),
			PoolAmount:  big.NewInt(pools[i]),
			WinnerCount: winners[i],
		}
	}
	return r
}

// OpenRound creates a round still selling tickets
func OpenRound(id uint64) *entities.RoundRecord {
	return &entities.RoundRecord{RoundID: id, State: entities.RoundStateOpen}
}

// RoundsMatching returns a predicate for mock.MatchedBy over round ID slices
func RoundsMatching(want []uint64) func([]uint64) bool {
	return func(got []uint64) bool {
		return fmt.Sprint(got) == fmt.Sprint(want)
	}
}
