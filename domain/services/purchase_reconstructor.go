package services

import (
	"fmt"
	"math/big"
	"sort"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// Reconstruction is the result of aligning purchase logs with the ledger's ticket records
type Reconstruction struct {
	Groups  []*entities.PurchaseGroup
	Tickets []*entities.Ticket
	// Anomalies wrap entities.ErrInconsistentLog and describe best-effort assignments
	Anomalies []error
}

// contribution is one log's claim on a number of tickets in one round
type contribution struct {
	group    *entities.PurchaseGroup
	round    uint64
	count    uint64
	block    uint64
	logIndex uint
	slot     int
}

func (c contribution) before(o contribution) bool {
	if c.block != o.block {
		return c.block < o.block
	}
	if c.logIndex != o.logIndex {
		return c.logIndex < o.logIndex
	}
	return c.slot < o.slot
}

// ReconstructPurchases groups purchase events by transaction and aligns each round's tickets
// to the logs that bought them. Inputs are not modified; the same inputs always produce the same output.
//
// Alignment is first-in first-out: within a round, tickets sorted by ID are handed out to logs
// sorted by (block, log index). This is only correct while the ledger issues ticket IDs in
// log-emission order. Tickets no log accounts for land in a per-round fallback group.
func ReconstructPurchases(player common.Address, evs []*entities.RawEvent, ticketsByRound map[uint64][]*entities.Ticket) *Reconstruction {
	rec := &Reconstruction{}
	groups, contributions := groupByTransaction(evs, rec)

	rounds := make(map[uint64]bool)
	for r := range contributions {
		rounds[r] = true
	}
	for r := range ticketsByRound {
		rounds[r] = true
	}
	roundIDs := make([]uint64, 0, len(rounds))
	for r := range rounds {
		roundIDs = append(roundIDs, r)
	}
	sort.Slice(roundIDs, func(i, j int) bool { return roundIDs[i] < roundIDs[j] })

	owners := make(map[uint64]*entities.PurchaseGroup)
	var fallbacks []*entities.PurchaseGroup
	for _, round := range roundIDs {
		tickets := sortedTickets(round, ticketsByRound[round])
		contribs := contributions[round]
		sort.SliceStable(contribs, func(i, j int) bool { return contribs[i].before(contribs[j]) })

		next := 0
		for _, c := range contribs {
			var taken uint64
			for taken < c.count && next < len(tickets) {
				assignTicket(tickets[next], c.group, round, owners, rec)
				next++
				taken++
			}
			if taken < c.count {
				rec.anomaly("round %d: tx %s declared %d tickets, only %d found", round, c.group.TxHash.Hex(), c.count, taken)
			}
		}

		if next < len(tickets) {
			fb := entities.NewPurchaseGroup(common.Hash{}, player, round, round)
			fb.Fallback = true
			for _, t := range tickets[next:] {
				assignTicket(t, fb, round, owners, rec)
			}
			rec.anomaly("round %d: %d tickets not matched to any purchase log", round, len(tickets)-next)
			fallbacks = append(fallbacks, fb)
		}

		rec.Tickets = append(rec.Tickets, tickets...)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].BlockNumber != groups[j].BlockNumber {
			return groups[i].BlockNumber < groups[j].BlockNumber
		}
		return groups[i].LogIndex < groups[j].LogIndex
	})
	rec.Groups = append(groups, fallbacks...)

	for _, err := range rec.Anomalies {
		log.WithError(err).WithField("player", player.Hex()).Warn("Purchase reconstruction degraded")
	}
	return rec
}

// groupByTransaction builds one group per multi-round transaction, or one per single-round log
func groupByTransaction(evs []*entities.RawEvent, rec *Reconstruction) ([]*entities.PurchaseGroup, map[uint64][]contribution) {
	purchases := uniquePurchases(evs)

	var order []common.Hash
	byTx := make(map[common.Hash][]*entities.RawEvent)
	for _, ev := range purchases {
		if _, ok := byTx[ev.TxHash]; !ok {
			order = append(order, ev.TxHash)
		}
		byTx[ev.TxHash] = append(byTx[ev.TxHash], ev)
	}

	var groups []*entities.PurchaseGroup
	contributions := make(map[uint64][]contribution)
	for _, tx := range order {
		txEvents := byTx[tx]

		var multis []*entities.RawEvent
		for _, ev := range txEvents {
			if ev.Kind == entities.EventKindPurchaseMulti {
				multis = append(multis, ev)
			}
		}

		if len(multis) > 0 {
			g := newGroup(multis[0])
			for _, m := range multis {
				lo, hi := m.RoundSpan()
				if lo < g.StartRound {
					g.StartRound = lo
				}
				if hi > g.EndRound {
					g.EndRound = hi
				}
				addCost(g, m)
				for i, round := range m.RoundIDs {
					count, ok := ticketCountAt(m, i)
					if !ok {
						rec.anomaly("tx %s: round %d has no ticket count", tx.Hex(), round)
					}
					g.DeclaredTickets[round] += count
					contributions[round] = append(contributions[round], contribution{
						group: g, round: round, count: count,
						block: m.BlockNumber, logIndex: m.LogIndex, slot: i,
					})
				}
			}
			if subsumed := len(txEvents) - len(multis); subsumed > 0 {
				log.WithFields(log.Fields{
					"tx_hash":  tx.Hex(),
					"subsumed": subsumed,
				}).Debug("Single-round logs folded into multi-round purchase")
			}
			groups = append(groups, g)
			continue
		}

		for _, ev := range txEvents {
			if len(ev.RoundIDs) == 0 {
				rec.anomaly("tx %s log %d: purchase without round", tx.Hex(), ev.LogIndex)
				continue
			}
			g := newGroup(ev)
			addCost(g, ev)
			count, _ := ticketCountAt(ev, 0)
			round := ev.RoundIDs[0]
			g.DeclaredTickets[round] += count
			contributions[round] = append(contributions[round], contribution{
				group: g, round: round, count: count,
				block: ev.BlockNumber, logIndex: ev.LogIndex,
			})
			groups = append(groups, g)
		}
	}
	return groups, contributions
}

func newGroup(ev *entities.RawEvent) *entities.PurchaseGroup {
	lo, hi := ev.RoundSpan()
	g := entities.NewPurchaseGroup(ev.TxHash, ev.Player, lo, hi)
	g.Timestamp = ev.Timestamp
	g.BlockNumber = ev.BlockNumber
	g.LogIndex = ev.LogIndex
	return g
}

func addCost(g *entities.PurchaseGroup, ev *entities.RawEvent) {
	if ev.AmountSpent != nil {
		g.TotalCost = new(big.Int).Add(g.TotalCost, ev.AmountSpent)
	}
}

func ticketCountAt(ev *entities.RawEvent, i int) (uint64, bool) {
	if i >= len(ev.TicketCounts) {
		return 0, false
	}
	return ev.TicketCounts[i], true
}

// uniquePurchases filters purchase events, drops duplicate log entries and orders them
func uniquePurchases(evs []*entities.RawEvent) []*entities.RawEvent {
	seen := make(map[entities.EventKey]bool, len(evs))
	var out []*entities.RawEvent
	for _, ev := range evs {
		if !ev.IsPurchase() || seen[ev.Key()] {
			continue
		}
		seen[ev.Key()] = true
		out = append(out, ev)
	}
	SortEvents(out)
	return out
}

// sortedTickets copies a round's tickets, drops duplicate IDs and sorts by ID
func sortedTickets(round uint64, tickets []*entities.Ticket) []*entities.Ticket {
	seen := make(map[uint64]bool, len(tickets))
	out := make([]*entities.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if seen[t.TicketID] {
			continue
		}
		seen[t.TicketID] = true
		c := t.Clone()
		c.RoundID = round
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out
}

// assignTicket records ticket ownership. A ticket ID keeps the first group it was assigned to.
func assignTicket(t *entities.Ticket, g *entities.PurchaseGroup, round uint64, owners map[uint64]*entities.PurchaseGroup, rec *Reconstruction) {
	if prev, ok := owners[t.TicketID]; ok && prev != g {
		rec.anomaly("ticket %d in round %d aligned to tx %s but already owned by tx %s",
			t.TicketID, round, g.TxHash.Hex(), prev.TxHash.Hex())
		t.OwnerGroup = prev.TxHash
		t.RoundRange = prev.Range()
		return
	}
	owners[t.TicketID] = g
	t.OwnerGroup = g.TxHash
	t.RoundRange = g.Range()
	g.RoundTickets[round] = append(g.RoundTickets[round], t.TicketID)
}

func (r *Reconstruction) anomaly(format string, args ...any) {
	r.Anomalies = append(r.Anomalies, fmt.Errorf("%w: "+format, append([]any{entities.ErrInconsistentLog}, args...)...))
}
