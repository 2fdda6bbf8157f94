package entities

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MaxClaimBatchSize is the ledger's limit on rounds per claimWinningsMultiple call
const MaxClaimBatchSize = 50

// ClaimBatchState is the lifecycle of one claim write
type ClaimBatchState string

const (
	ClaimBatchPending   ClaimBatchState = "pending"
	ClaimBatchSubmitted ClaimBatchState = "submitted"
	ClaimBatchConfirmed ClaimBatchState = "confirmed"
	ClaimBatchFailed    ClaimBatchState = "failed"
	ClaimBatchTimedOut  ClaimBatchState = "timed_out"
)

// IsTerminal returns true for states no transition leaves
func (s ClaimBatchState) IsTerminal() bool {
	return s == ClaimBatchConfirmed || s == ClaimBatchFailed || s == ClaimBatchTimedOut
}

// ClaimBatch is one bounded claim write and its outcome
type ClaimBatch struct {
	Index       int
	Selections  []ClaimSelection
	State       ClaimBatchState
	TxRef       *common.Hash
	BlockNumber uint64
	Reason      FailureReason
	Err         error
}

// NewClaimBatch creates a pending batch
func NewClaimBatch(index int, selections []ClaimSelection) *ClaimBatch {
	return &ClaimBatch{
		Index:      index,
		Selections: selections,
		State:      ClaimBatchPending,
	}
}

// RoundIDs returns the rounds in the batch
func (b *ClaimBatch) RoundIDs() []uint64 {
	ids := make([]uint64, len(b.Selections))
	for i, s := range b.Selections {
		ids[i] = s.RoundID
	}
	return ids
}

// Amount returns the total expected payout of the batch
func (b *ClaimBatch) Amount() *big.Int {
	total := new(big.Int)
	for _, s := range b.Selections {
		if s.Amount != nil {
			total.Add(total, s.Amount)
		}
	}
	return total
}

// MarkSubmitted records the transaction reference: Pending -> Submitted
func (b *ClaimBatch) MarkSubmitted(txRef common.Hash) error {
	if b.State != ClaimBatchPending {
		return b.invalid(ClaimBatchSubmitted)
	}
	b.State = ClaimBatchSubmitted
	b.TxRef = &txRef
	return nil
}

// MarkConfirmed records a successful mined claim: Submitted -> Confirmed
func (b *ClaimBatch) MarkConfirmed(blockNumber uint64) error {
	if b.State != ClaimBatchSubmitted {
		return b.invalid(ClaimBatchConfirmed)
	}
	b.State = ClaimBatchConfirmed
	b.BlockNumber = blockNumber
	return nil
}

// MarkFailed records a failure: Pending|Submitted -> Failed
func (b *ClaimBatch) MarkFailed(reason FailureReason, err error) error {
	if b.State != ClaimBatchPending && b.State != ClaimBatchSubmitted {
		return b.invalid(ClaimBatchFailed)
	}
	b.State = ClaimBatchFailed
	b.Reason = reason
	b.Err = err
	return nil
}

// MarkTimedOut records an unknown outcome: Submitted -> TimedOut
func (b *ClaimBatch) MarkTimedOut(err error) error {
	if b.State != ClaimBatchSubmitted {
		return b.invalid(ClaimBatchTimedOut)
	}
	b.State = ClaimBatchTimedOut
	b.Reason = FailureReasonTimeout
	b.Err = err
	return nil
}

// MarkUncertain records a broadcast whose outcome cannot be tracked: Pending|Submitted -> TimedOut.
// The batch must never be retried or reported as failed.
func (b *ClaimBatch) MarkUncertain(txRef common.Hash, err error) error {
	if b.State != ClaimBatchPending && b.State != ClaimBatchSubmitted {
		return b.invalid(ClaimBatchTimedOut)
	}
	b.State = ClaimBatchTimedOut
	b.TxRef = &txRef
	b.Reason = FailureReasonTimeout
	b.Err = err
	return nil
}

func (b *ClaimBatch) invalid(to ClaimBatchState) error {
	return fmt.Errorf("%w: batch %d %s -> %s", ErrInvalidTransition, b.Index, b.State, to)
}

// PlanClaimBatches sorts and dedupes the selections and splits them into batches of at most size
func PlanClaimBatches(selections []ClaimSelection, size int) ([]*ClaimBatch, error) {
	if size <= 0 || size > MaxClaimBatchSize {
		return nil, fmt.Errorf("%w: size %d", ErrBatchTooLarge, size)
	}

	byRound := make(map[uint64]ClaimSelection, len(selections))
	for _, s := range selections {
		if _, ok := byRound[s.RoundID]; !ok {
			byRound[s.RoundID] = s
		}
	}
	unique := make([]ClaimSelection, 0, len(byRound))
	for _, s := range byRound {
		unique = append(unique, s)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].RoundID < unique[j].RoundID })

	var batches []*ClaimBatch
	for start := 0; start < len(unique); start += size {
		end := start + size
		if end > len(unique) {
			end = len(unique)
		}
		batches = append(batches, NewClaimBatch(len(batches), unique[start:end]))
	}
	return batches, nil
}

// ClaimReport is the reduction of a claim run over its batches
type ClaimReport struct {
	Player         common.Address
	Batches        []*ClaimBatch
	TotalConfirmed *big.Int
	Succeeded      []*ClaimBatch
	Failed         []*ClaimBatch
	Uncertain      []*ClaimBatch
	NotAttempted   []*ClaimBatch

	RoundsRequested int
	RoundsConfirmed int
	RoundsFailed    int
	RoundsUncertain int
}

// NewClaimReport reduces batches into a report
func NewClaimReport(player common.Address, batches []*ClaimBatch) *ClaimReport {
	report := &ClaimReport{
		Player:         player,
		Batches:        batches,
		TotalConfirmed: new(big.Int),
	}
	for _, b := range batches {
		n := len(b.Selections)
		report.RoundsRequested += n
		switch b.State {
		case ClaimBatchConfirmed:
			report.Succeeded = append(report.Succeeded, b)
			report.RoundsConfirmed += n
			report.TotalConfirmed.Add(report.TotalConfirmed, b.Amount())
		case ClaimBatchFailed:
			report.Failed = append(report.Failed, b)
			report.RoundsFailed += n
		case ClaimBatchTimedOut, ClaimBatchSubmitted:
			report.Uncertain = append(report.Uncertain, b)
			report.RoundsUncertain += n
		default:
			report.NotAttempted = append(report.NotAttempted, b)
		}
	}
	return report
}

// FullySucceeded returns true when every requested round confirmed
func (r *ClaimReport) FullySucceeded() bool {
	return r.RoundsRequested > 0 && r.RoundsConfirmed == r.RoundsRequested
}

// Summary renders a one-line outcome such as "12 of 15 rounds claimed; 3 failed"
func (r *ClaimReport) Summary() string {
	parts := []string{fmt.Sprintf("%d of %d rounds claimed", r.RoundsConfirmed, r.RoundsRequested)}
	if r.RoundsFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.RoundsFailed))
	}
	if r.RoundsUncertain > 0 {
		parts = append(parts, fmt.Sprintf("%d pending confirmation", r.RoundsUncertain))
	}
	if skipped := r.RoundsRequested - r.RoundsConfirmed - r.RoundsFailed - r.RoundsUncertain; skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d not attempted", skipped))
	}
	return strings.Join(parts, "; ")
}
