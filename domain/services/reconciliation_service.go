package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/events"
	"lottoclaim/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultClaimableMaxAge is how long a snapshot may back a claim before it is re-resolved
const DefaultClaimableMaxAge = time.Minute

// reconciliationService implements interfaces.ReconciliationService
type reconciliationService struct {
	ingestor       interfaces.EventIngestor
	reader         interfaces.LedgerReader
	resolver       interfaces.ClaimStatusResolver
	receipts       interfaces.ClaimReceiptStore
	eventPublisher interfaces.EventPublisher
	readLimit      int
	maxAge         time.Duration
	now            func() time.Time
}

// NewReconciliationService creates the pipeline ingest -> reconstruct -> entitle -> resolve.
// readLimit bounds concurrent round reads; maxAge is the claim staleness limit.
func NewReconciliationService(
	ingestor interfaces.EventIngestor,
	reader interfaces.LedgerReader,
	resolver interfaces.ClaimStatusResolver,
	receipts interfaces.ClaimReceiptStore,
	eventPublisher interfaces.EventPublisher,
	readLimit int,
	maxAge time.Duration,
) interfaces.ReconciliationService {
	if readLimit <= 0 {
		readLimit = defaultStatusConcurrency
	}
	if maxAge <= 0 {
		maxAge = DefaultClaimableMaxAge
	}
	return &reconciliationService{
		ingestor:       ingestor,
		reader:         reader,
		resolver:       resolver,
		receipts:       receipts,
		eventPublisher: eventPublisher,
		readLimit:      readLimit,
		maxAge:         maxAge,
		now:            time.Now,
	}
}

// roundData is what the ledger reported for one round
type roundData struct {
	round   *entities.RoundRecord
	tickets []*entities.Ticket
}

// Reconcile re-derives the full player view. Only a log fetch failure fails the call;
// per-round read failures are skipped and reported as warnings.
func (s *reconciliationService) Reconcile(ctx context.Context, player common.Address) (*entities.ReconciliationSnapshot, error) {
	evs, err := s.ingestor.Ingest(ctx, player)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest events: %w", err)
	}

	snap := &entities.ReconciliationSnapshot{
		Player: player,
		Events: evs,
		Rounds: make(map[uint64]*entities.RoundRecord),
	}

	data, err := s.readRounds(ctx, player, roundsOf(evs), snap)
	if err != nil {
		return nil, err
	}

	ticketsByRound := make(map[uint64][]*entities.Ticket)
	for id, d := range data {
		if d.round != nil {
			snap.Rounds[id] = d.round
		}
		if d.tickets != nil {
			ticketsByRound[id] = d.tickets
		}
	}

	rec := ReconstructPurchases(player, evs, ticketsByRound)
	snap.Groups = rec.Groups
	snap.Tickets = rec.Tickets
	for _, a := range rec.Anomalies {
		snap.Warnings = append(snap.Warnings, a.Error())
	}

	snap.Entitlements = CalculateEntitlements(snap.Rounds, snap.Tickets)
	snap.TicketHistory = make(map[uint64][]*entities.Entitlement)
	for _, t := range snap.Tickets {
		if _, done := snap.TicketHistory[t.TicketID]; !done {
			snap.TicketHistory[t.TicketID] = TicketRoundHistory(t, snap.Rounds)
		}
	}
	owed := AmountsOwed(snap.Rounds, snap.Tickets, snap.Entitlements)

	cached := s.loadReceipts(ctx, player)
	resolution, err := s.resolver.Resolve(ctx, player, owed, claimHints(evs, cached))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve claim status: %w", err)
	}
	s.invalidateReceipts(ctx, player, cached, resolution.StaleReceipts)

	snap.History = resolution.History
	snap.Claimable = resolution.Claimable
	snap.TotalClaimable = resolution.TotalClaimable
	snap.ResolvedAt = resolution.ResolvedAt
	if snap.ResolvedAt.IsZero() {
		snap.ResolvedAt = s.now()
	}
	if resolution.QueryFailures > 0 {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("%d claim status queries failed; those rounds are shown as claimable", resolution.QueryFailures))
	}
	snap.Stats = lifetimeStats(evs, snap.Groups, resolution)

	s.publish(snap, resolution.QueryFailures)

	log.WithFields(log.Fields{
		"player":          player.Hex(),
		"events":          len(evs),
		"groups":          len(snap.Groups),
		"tickets":         len(snap.Tickets),
		"claimable":       len(snap.Claimable),
		"total_claimable": snap.TotalClaimable.String(),
		"warnings":        len(snap.Warnings),
	}).Info("Reconciliation completed")

	return snap, nil
}

// PrepareClaim returns selections backed by a snapshot no older than maxAge
func (s *reconciliationService) PrepareClaim(ctx context.Context, player common.Address, prior *entities.ReconciliationSnapshot, roundIDs []uint64) ([]entities.ClaimSelection, *entities.ReconciliationSnapshot, error) {
	snap := prior
	if snap == nil || snap.Player != player || snap.IsStale(s.now(), s.maxAge) {
		var err error
		snap, err = s.Reconcile(ctx, player)
		if err != nil {
			return nil, nil, err
		}
	}

	selections, skipped := snap.Selections(roundIDs)
	if len(skipped) > 0 {
		log.WithFields(log.Fields{
			"player":  player.Hex(),
			"skipped": skipped,
		}).Warn("Requested rounds are not claimable")
	}
	return selections, snap, nil
}

// readRounds fetches round records and the player's tickets with bounded concurrency
func (s *reconciliationService) readRounds(ctx context.Context, player common.Address, roundIDs []uint64, snap *entities.ReconciliationSnapshot) (map[uint64]*roundData, error) {
	var mu sync.Mutex
	data := make(map[uint64]*roundData, len(roundIDs))
	warn := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		snap.Warnings = append(snap.Warnings, fmt.Sprintf(format, args...))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.readLimit)
	for _, id := range roundIDs {
		g.Go(func() error {
			d := &roundData{}
			round, err := s.reader.GetRound(gctx, id)
			if err != nil {
				log.WithError(err).WithField("round_id", id).Warn("Failed to read round")
				warn("round %d: failed to read round: %v", id, err)
			} else {
				d.round = round
			}

			tickets, err := s.reader.PlayerTickets(gctx, id, player)
			if err != nil {
				log.WithError(err).WithField("round_id", id).Warn("Failed to read player tickets")
				warn("round %d: failed to read tickets: %v", id, err)
			} else {
				d.tickets = tickets
			}

			mu.Lock()
			data[id] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(snap.Warnings)
	return data, nil
}

func (s *reconciliationService) loadReceipts(ctx context.Context, player common.Address) map[uint64]*entities.ClaimReceipt {
	if s.receipts == nil {
		return nil
	}
	cached, err := s.receipts.ForPlayer(player).GetAll(ctx)
	if err != nil {
		log.WithError(err).WithField("player", player.Hex()).Warn("Failed to load cached claim receipts")
		return nil
	}
	return cached
}

// invalidateReceipts drops cached receipts the ledger no longer confirms
func (s *reconciliationService) invalidateReceipts(ctx context.Context, player common.Address, cached map[uint64]*entities.ClaimReceipt, stale []uint64) {
	if s.receipts == nil {
		return
	}
	var drop []uint64
	for _, id := range stale {
		if _, ok := cached[id]; ok {
			drop = append(drop, id)
		}
	}
	if len(drop) == 0 {
		return
	}
	if err := s.receipts.ForPlayer(player).Delete(ctx, drop); err != nil {
		log.WithError(err).WithField("player", player.Hex()).Warn("Failed to invalidate claim receipts")
		return
	}
	log.WithFields(log.Fields{
		"player": player.Hex(),
		"rounds": drop,
	}).Info("Invalidated cached claim receipts")
}

func (s *reconciliationService) publish(snap *entities.ReconciliationSnapshot, queryFailures int) {
	if s.eventPublisher == nil {
		return
	}
	err := s.eventPublisher.Publish(events.ReconciliationCompletedEvent{
		Player:         snap.Player.Hex(),
		Groups:         len(snap.Groups),
		Tickets:        len(snap.Tickets),
		HistoryRounds:  len(snap.History),
		ClaimableCount: len(snap.Claimable),
		TotalClaimable: snap.TotalClaimable,
		QueryFailures:  queryFailures,
		Warnings:       len(snap.Warnings),
		ResolvedAt:     snap.ResolvedAt,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to publish reconciliation event")
	}
}

// roundsOf returns every round touched by purchase or claim events, ascending
func roundsOf(evs []*entities.RawEvent) []uint64 {
	seen := make(map[uint64]bool)
	for _, ev := range evs {
		for _, r := range ev.RoundIDs {
			seen[r] = true
		}
	}
	out := make([]uint64, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// claimHints merges claim log tx hashes and cached receipts; cached receipts win
func claimHints(evs []*entities.RawEvent, cached map[uint64]*entities.ClaimReceipt) map[uint64]common.Hash {
	hints := make(map[uint64]common.Hash)
	for _, ev := range evs {
		if ev.Kind == entities.EventKindClaim && len(ev.RoundIDs) > 0 {
			hints[ev.RoundIDs[0]] = ev.TxHash
		}
	}
	for id, r := range cached {
		hints[id] = r.TxHash
	}
	return hints
}

func lifetimeStats(evs []*entities.RawEvent, groups []*entities.PurchaseGroup, res *entities.ClaimResolution) *entities.LifetimeStats {
	stats := &entities.LifetimeStats{
		TotalSpent:   new(big.Int),
		TotalClaimed: new(big.Int),
		TotalPending: new(big.Int).Set(res.TotalClaimable),
	}
	for _, g := range groups {
		if g.Fallback {
			continue
		}
		stats.Purchases++
		stats.TicketsBought += g.TotalDeclared()
		stats.TotalSpent.Add(stats.TotalSpent, g.TotalCost)
	}
	for _, ev := range evs {
		switch {
		case ev.Kind == entities.EventKindPurchaseSingle:
			stats.FreeTickets += ev.FreeTicketsUsed
		case ev.Kind == entities.EventKindClaim && ev.AmountSpent != nil:
			stats.TotalClaimed.Add(stats.TotalClaimed, ev.AmountSpent)
		}
	}
	for _, rec := range res.History {
		if rec.AmountOwed.Sign() > 0 {
			stats.RoundsWon++
		}
	}
	return stats
}
