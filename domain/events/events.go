package events

import (
	"math/big"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeReconciliationCompleted EventType = "reconciliation_completed"
	EventTypeClaimBatchSettled       EventType = "claim_batch_settled"
	EventTypeClaimRunCompleted       EventType = "claim_run_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// ReconciliationCompletedEvent is published after every successful reconciliation pass
type ReconciliationCompletedEvent struct {
	Player         string    `json:"player"`
	Groups         int       `json:"groups"`
	Tickets        int       `json:"tickets"`
	HistoryRounds  int       `json:"history_rounds"`
	ClaimableCount int       `json:"claimable_count"`
	TotalClaimable *big.Int  `json:"total_claimable"`
	QueryFailures  int       `json:"query_failures"`
	Warnings       int       `json:"warnings"`
	ResolvedAt     time.Time `json:"resolved_at"`
}

func (e ReconciliationCompletedEvent) Type() EventType {
	return EventTypeReconciliationCompleted
}

// ClaimBatchSettledEvent is published when a claim batch reaches a terminal state
type ClaimBatchSettledEvent struct {
	Player      string   `json:"player"`
	BatchIndex  int      `json:"batch_index"`
	RoundIDs    []uint64 `json:"round_ids"`
	State       string   `json:"state"`
	Reason      string   `json:"reason,omitempty"`
	TxHash      string   `json:"tx_hash,omitempty"`
	BlockNumber uint64   `json:"block_number,omitempty"`
	Amount      *big.Int `json:"amount"`
}

func (e ClaimBatchSettledEvent) Type() EventType {
	return EventTypeClaimBatchSettled
}

// ClaimRunCompletedEvent summarizes a full claim run
type ClaimRunCompletedEvent struct {
	Player          string   `json:"player"`
	Summary         string   `json:"summary"`
	Batches         int      `json:"batches"`
	RoundsRequested int      `json:"rounds_requested"`
	RoundsConfirmed int      `json:"rounds_confirmed"`
	RoundsFailed    int      `json:"rounds_failed"`
	RoundsUncertain int      `json:"rounds_uncertain"`
	TotalConfirmed  *big.Int `json:"total_confirmed"`
	TxHashes        []string `json:"tx_hashes"`
}

func (e ClaimRunCompletedEvent) Type() EventType {
	return EventTypeClaimRunCompleted
}
