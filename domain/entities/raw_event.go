package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies the shape of a ledger log entry
type EventKind string

const (
	EventKindPurchaseSingle EventKind = "purchase_single"
	EventKindPurchaseMulti  EventKind = "purchase_multi"
	EventKindClaim          EventKind = "claim"
)

// RawEvent is a decoded purchase or claim log entry. It is never mutated after decoding.
type RawEvent struct {
	Kind            EventKind
	Contract        common.Address
	TxHash          common.Hash
	BlockNumber     uint64
	LogIndex        uint
	Player          common.Address
	RoundIDs        []uint64
	TicketCounts    []uint64
	FreeTicketsUsed uint64
	AmountSpent     *big.Int // purchase cost; claimed amount for claim events
	Timestamp       time.Time
}

// EventKey uniquely identifies a log entry on the ledger
type EventKey struct {
	TxHash   common.Hash
	LogIndex uint
}

// Key returns the dedupe key for the event
func (e *RawEvent) Key() EventKey {
	return EventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

// Before reports whether e was emitted before o
func (e *RawEvent) Before(o *RawEvent) bool {
	if e.BlockNumber != o.BlockNumber {
		return e.BlockNumber < o.BlockNumber
	}
	return e.LogIndex < o.LogIndex
}

// IsPurchase returns true for single and multi-round purchase events
func (e *RawEvent) IsPurchase() bool {
	return e.Kind == EventKindPurchaseSingle || e.Kind == EventKindPurchaseMulti
}

// TotalTickets returns the number of tickets the event declares across all rounds
func (e *RawEvent) TotalTickets() uint64 {
	var total uint64
	for _, c := range e.TicketCounts {
		total += c
	}
	return total
}

// RoundSpan returns the lowest and highest round the event touches
func (e *RawEvent) RoundSpan() (uint64, uint64) {
	if len(e.RoundIDs) == 0 {
		return 0, 0
	}
	lo, hi := e.RoundIDs[0], e.RoundIDs[0]
	for _, r := range e.RoundIDs[1:] {
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	return lo, hi
}
