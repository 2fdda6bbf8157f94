package services

import (
	"math/big"
	"sort"

	"lottoclaim/domain/entities"
)

// CountMatches returns how many numbers the ticket shares with the winning draw.
// Both selections are sorted and merge-scanned, so the result is independent of input order.
func CountMatches(ticket, winning entities.Numbers) int {
	a, b := ticket.Sorted(), winning.Sorted()
	matches := 0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			matches++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return matches
}

// CalculatePayout returns the per-winner share of the bracket matching the ticket.
// It is zero for an unfinalized round, no matches, a missing bracket, or a bracket without winners.
func CalculatePayout(round *entities.RoundRecord, matches int) *big.Int {
	if round == nil || !round.IsFinalized() || matches <= 0 {
		return new(big.Int)
	}
	bracket, ok := round.BracketFor(matches)
	if !ok {
		return new(big.Int)
	}
	return bracket.PayoutPerWinner()
}

// CalculateEntitlement scores one ticket against one round
func CalculateEntitlement(round *entities.RoundRecord, ticket *entities.Ticket) *entities.Entitlement {
	ent := &entities.Entitlement{
		RoundID:  round.RoundID,
		TicketID: ticket.TicketID,
		Payout:   new(big.Int),
	}
	if !round.IsFinalized() {
		return ent
	}
	ent.Matches = CountMatches(ticket.Numbers, *round.WinningNumbers)
	ent.Payout = CalculatePayout(round, ent.Matches)
	return ent
}

// CalculateEntitlements scores every ticket against the round it was recorded in.
// Tickets whose round is unknown or not finalized are skipped.
func CalculateEntitlements(rounds map[uint64]*entities.RoundRecord, tickets []*entities.Ticket) []*entities.Entitlement {
	var out []*entities.Entitlement
	for _, t := range tickets {
		round, ok := rounds[t.RoundID]
		if !ok || !round.IsFinalized() {
			continue
		}
		out = append(out, CalculateEntitlement(round, t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoundID != out[j].RoundID {
			return out[i].RoundID < out[j].RoundID
		}
		return out[i].TicketID < out[j].TicketID
	})
	return out
}

// AmountsOwed sums entitlements per finalized round the player holds tickets in.
// Rounds without a winning ticket are included with a zero amount.
func AmountsOwed(rounds map[uint64]*entities.RoundRecord, tickets []*entities.Ticket, ents []*entities.Entitlement) []entities.RoundAmount {
	owed := make(map[uint64]*big.Int)
	for _, t := range tickets {
		if round, ok := rounds[t.RoundID]; ok && round.IsFinalized() {
			owed[t.RoundID] = new(big.Int)
		}
	}
	for _, e := range ents {
		if total, ok := owed[e.RoundID]; ok {
			total.Add(total, e.Payout)
		}
	}

	out := make([]entities.RoundAmount, 0, len(owed))
	for id, amount := range owed {
		out = append(out, entities.RoundAmount{RoundID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundID < out[j].RoundID })
	return out
}

// TicketRoundHistory scores a ticket's numbers against every known finalized round in its range
func TicketRoundHistory(ticket *entities.Ticket, rounds map[uint64]*entities.RoundRecord) []*entities.Entitlement {
	var out []*entities.Entitlement
	r := ticket.RoundRange
	if r == (entities.RoundRange{}) || r.Len() == 0 {
		r = entities.RoundRange{Start: ticket.RoundID, End: ticket.RoundID}
	}
	for id := r.Start; id <= r.End; id++ {
		round, ok := rounds[id]
		if ok && round.IsFinalized() {
			out = append(out, CalculateEntitlement(round, ticket))
		}
		if id == r.End {
			break
		}
	}
	return out
}
