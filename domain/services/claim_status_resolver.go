package services

import (
	"context"
	"math/big"
	"sort"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultStatusConcurrency = 10
	defaultStatusBatchDelay  = 100 * time.Millisecond
)

// claimStatusResolver implements interfaces.ClaimStatusResolver
type claimStatusResolver struct {
	reader      interfaces.LedgerReader
	concurrency int
	batchDelay  time.Duration
	now         func() time.Time
}

// NewClaimStatusResolver creates a resolver querying at most concurrency rounds at a time,
// pausing batchDelay between batches
func NewClaimStatusResolver(reader interfaces.LedgerReader, concurrency int, batchDelay time.Duration) interfaces.ClaimStatusResolver {
	if concurrency <= 0 {
		concurrency = defaultStatusConcurrency
	}
	if batchDelay < 0 {
		batchDelay = defaultStatusBatchDelay
	}
	return &claimStatusResolver{
		reader:      reader,
		concurrency: concurrency,
		batchDelay:  batchDelay,
		now:         time.Now,
	}
}

// statusResult is the outcome of one live hasClaimed query
type statusResult struct {
	claimed bool
	err     error
}

// Resolve classifies every round. A failed status query leaves the round claimable rather than hiding it.
func (r *claimStatusResolver) Resolve(ctx context.Context, player common.Address, owed []entities.RoundAmount, hints map[uint64]common.Hash) (*entities.ClaimResolution, error) {
	sorted := make([]entities.RoundAmount, len(owed))
	copy(sorted, owed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RoundID < sorted[j].RoundID })

	var toQuery []uint64
	for _, ra := range sorted {
		if ra.Amount != nil && ra.Amount.Sign() > 0 {
			toQuery = append(toQuery, ra.RoundID)
		}
	}

	results, err := r.queryStatuses(ctx, player, toQuery)
	if err != nil {
		return nil, err
	}

	res := &entities.ClaimResolution{
		TotalClaimable: new(big.Int),
		ResolvedAt:     r.now(),
	}
	for _, ra := range sorted {
		amount := ra.Amount
		if amount == nil {
			amount = new(big.Int)
		}
		rec := &entities.ClaimRecord{
			RoundID:    ra.RoundID,
			AmountOwed: new(big.Int).Set(amount),
			Status:     entities.ClaimStatusNoWin,
		}

		if amount.Sign() > 0 {
			result := results[ra.RoundID]
			switch {
			case result.err != nil:
				rec.Status = entities.ClaimStatusClaimable
				rec.QueryFailed = true
				res.QueryFailures++
				log.WithError(result.err).WithFields(log.Fields{
					"round_id": ra.RoundID,
					"player":   player.Hex(),
				}).Warn("Claim status query failed, assuming unclaimed")
			case result.claimed:
				rec.MarkClaimed()
			default:
				rec.Status = entities.ClaimStatusClaimable
			}
		}

		if hint, ok := hints[ra.RoundID]; ok {
			switch {
			case rec.Claimed:
				h := hint
				rec.TxRef = &h
			case amount.Sign() > 0 && !rec.QueryFailed:
				res.StaleReceipts = append(res.StaleReceipts, ra.RoundID)
			}
		}

		if rec.IsClaimable() {
			res.Claimable = append(res.Claimable, rec)
			res.TotalClaimable.Add(res.TotalClaimable, rec.AmountOwed)
		}
		res.History = append(res.History, rec)
	}
	return res, nil
}

// queryStatuses checks rounds in bounded concurrent batches. Per-round errors are recorded, never returned.
func (r *claimStatusResolver) queryStatuses(ctx context.Context, player common.Address, rounds []uint64) (map[uint64]statusResult, error) {
	results := make(map[uint64]statusResult, len(rounds))
	for start := 0; start < len(rounds); start += r.concurrency {
		if start > 0 && r.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.batchDelay):
			}
		}

		end := start + r.concurrency
		if end > len(rounds) {
			end = len(rounds)
		}
		batch := rounds[start:end]
		out := make([]statusResult, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, roundID := range batch {
			g.Go(func() error {
				claimed, err := r.reader.HasClaimed(gctx, roundID, player)
				out[i] = statusResult{claimed: claimed, err: err}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i, roundID := range batch {
			results[roundID] = out[i]
		}
	}
	return results, nil
}
