package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// blockRange is an inclusive span of blocks
type blockRange struct {
	from uint64
	to   uint64
}

// eventIngestor implements interfaces.EventIngestor
type eventIngestor struct {
	source      interfaces.LedgerLogSource
	deployBlock uint64
	chunkSize   uint64
}

// NewEventIngestor creates an ingestor scanning from deployBlock to head.
// A chunkSize of 0 queries the whole range at once.
func NewEventIngestor(source interfaces.LedgerLogSource, deployBlock, chunkSize uint64) interfaces.EventIngestor {
	return &eventIngestor{
		source:      source,
		deployBlock: deployBlock,
		chunkSize:   chunkSize,
	}
}

// Ingest rescans the full configured range. Any fetch failure fails the call; retries are up to the caller.
func (s *eventIngestor) Ingest(ctx context.Context, player common.Address) ([]*entities.RawEvent, error) {
	latest, err := s.source.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block: %w", err)
	}
	if latest < s.deployBlock {
		return nil, nil
	}

	seen := make(map[entities.EventKey]bool)
	var collected []*entities.RawEvent
	for _, r := range splitBlockRange(s.deployBlock, latest, s.chunkSize) {
		batch, err := s.source.FetchEvents(ctx, player, r.from, r.to)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events in blocks %d-%d: %w", r.from, r.to, err)
		}
		for _, ev := range batch {
			if seen[ev.Key()] {
				continue
			}
			seen[ev.Key()] = true
			collected = append(collected, ev)
		}
	}

	SortEvents(collected)
	return s.withTimestamps(ctx, collected), nil
}

// withTimestamps returns copies of events with block timestamps filled in.
// Timestamps are display data, so lookup failures only log.
func (s *eventIngestor) withTimestamps(ctx context.Context, evs []*entities.RawEvent) []*entities.RawEvent {
	cache := make(map[uint64]time.Time)
	out := make([]*entities.RawEvent, len(evs))
	for i, ev := range evs {
		cp := *ev
		out[i] = &cp
		if !cp.Timestamp.IsZero() {
			continue
		}

		ts, ok := cache[cp.BlockNumber]
		if !ok {
			var err error
			ts, err = s.source.BlockTimestamp(ctx, cp.BlockNumber)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{
					"block": cp.BlockNumber,
				}).Warn("Failed to get block timestamp")
			}
			cache[cp.BlockNumber] = ts
		}
		cp.Timestamp = ts
	}
	return out
}

// SortEvents orders events by (block number, log index) in place
func SortEvents(evs []*entities.RawEvent) {
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Before(evs[j]) })
}

// splitBlockRange splits [from, to] into chunks of at most size blocks
func splitBlockRange(from, to, size uint64) []blockRange {
	if to < from {
		return nil
	}
	if size == 0 {
		return []blockRange{{from: from, to: to}}
	}

	var ranges []blockRange
	for start := from; start <= to; {
		end := start + size - 1
		if end > to || end < start {
			end = to
		}
		ranges = append(ranges, blockRange{from: start, to: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return ranges
}
