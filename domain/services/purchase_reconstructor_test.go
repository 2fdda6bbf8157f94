package services

import (
	"errors"
	"math/big"
	"testing"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/testhelpers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketsByRound(tickets ...[]*entities.Ticket) map[uint64][]*entities.Ticket {
	out := make(map[uint64][]*entities.Ticket)
	for _, set := range tickets {
		for _, t := range set {
			out[t.RoundID] = append(out[t.RoundID], t)
		}
	}
	return out
}

func groupByTx(groups []*entities.PurchaseGroup) map[common.Hash]*entities.PurchaseGroup {
	out := make(map[common.Hash]*entities.PurchaseGroup)
	for _, g := range groups {
		out[g.TxHash] = g
	}
	return out
}

func TestReconstructPurchases_MultiRoundAndSingle(t *testing.T) {
	t.Parallel()

	evs := []*entities.RawEvent{
		testhelpers.SingleRoundPurchase("B", 200, 0, 16, 1, 5),
		testhelpers.MultiRoundPurchase("A", 100, 3, 10, 15, 1, 30),
	}
	var rounds [][]*entities.Ticket
	for r := uint64(10); r <= 15; r++ {
		rounds = append(rounds, testhelpers.SequentialTickets(r, 100+(r-10), 1))
	}
	rounds = append(rounds, testhelpers.SequentialTickets(16, 200, 1))

	rec := ReconstructPurchases(testhelpers.TestPlayer, evs, ticketsByRound(rounds...))

	require.Len(t, rec.Groups, 2)
	assert.Empty(t, rec.Anomalies)

	a := rec.Groups[0]
	assert.Equal(t, testhelpers.TxHash("A"), a.TxHash)
	assert.Equal(t, uint64(10), a.StartRound)
	assert.Equal(t, uint64(15), a.EndRound)
	assert.True(t, a.IsMultiRound())
	assert.Equal(t, []uint64{100, 101, 102, 103, 104, 105}, a.TicketIDs())
	assert.Equal(t, big.NewInt(30), a.TotalCost)

	b := rec.Groups[1]
	assert.Equal(t, testhelpers.TxHash("B"), b.TxHash)
	assert.Equal(t, uint64(16), b.StartRound)
	assert.Equal(t, uint64(16), b.EndRound)
	assert.Equal(t, []uint64{200}, b.TicketIDs())

	for _, tk := range rec.Tickets {
		if tk.RoundID == 16 {
			assert.Equal(t, testhelpers.TxHash("B"), tk.OwnerGroup)
			assert.Equal(t, entities.RoundRange{Start: 16, End: 16}, tk.RoundRange)
			continue
		}
		assert.Equal(t, testhelpers.TxHash("A"), tk.OwnerGroup)
		assert.Equal(t, entities.RoundRange{Start: 10, End: 15}, tk.RoundRange)
	}
}

func TestReconstructPurchases_FIFOWithinRound(t *testing.T) {
	t.Parallel()

	evs := []*entities.RawEvent{
		testhelpers.SingleRoundPurchase("second", 20, 0, 5, 3, 30),
		testhelpers.SingleRoundPurchase("first", 10, 7, 5, 2, 20),
	}
	tickets := []*entities.Ticket{
		testhelpers.NewTicket(7, 5, entities.Numbers{1, 2, 3, 4, 5, 6}),
		testhelpers.NewTicket(3, 5, entities.Numbers{1, 2, 3, 4, 5, 7}),
		testhelpers.NewTicket(9, 5, entities.Numbers{1, 2, 3, 4, 5, 8}),
		testhelpers.NewTicket(1, 5, entities.Numbers{1, 2, 3, 4, 5, 9}),
		testhelpers.NewTicket(5, 5, entities.Numbers{1, 2, 3, 4, 5, 10}),
	}

	rec := ReconstructPurchases(testhelpers.TestPlayer, evs, ticketsByRound(tickets))
	groups := groupByTx(rec.Groups)

	assert.Equal(t, []uint64{1, 3}, groups[testhelpers.TxHash("first")].TicketIDs())
	assert.Equal(t, []uint64{5, 7, 9}, groups[testhelpers.TxHash("second")].TicketIDs())
	assert.Empty(t, rec.Anomalies)
}

func TestReconstructPurchases_PartitionsAllTickets(t *testing.T) {
	t.Parallel()

	evs := []*entities.RawEvent{
		testhelpers.SingleRoundPurchase("s1", 10, 0, 1, 3, 30),
		testhelpers.MultiRoundPurchase("m1", 11, 2, 1, 4, 2, 80),
		testhelpers.SingleRoundPurchase("s2", 12, 1, 2, 1, 10),
		testhelpers.MultiRoundPurchase("m2", 13, 0, 3, 5, 1, 30),
		testhelpers.SingleRoundPurchase("s3", 14, 5, 5, 4, 40),
	}
	tickets := ticketsByRound(
		testhelpers.SequentialTickets(1, 1, 5),  // s1:3 + m1:2
		testhelpers.SequentialTickets(2, 10, 3), // m1:2 + s2:1
		testhelpers.SequentialTickets(3, 20, 3), // m1:2 + m2:1
		testhelpers.SequentialTickets(4, 30, 3), // m1:2 + m2:1
		testhelpers.SequentialTickets(5, 40, 5), // m2:1 + s3:4
	)

	rec := ReconstructPurchases(testhelpers.TestPlayer, evs, tickets)
	require.Empty(t, rec.Anomalies)

	seen := make(map[uint64]int)
	total := 0
	for _, g := range rec.Groups {
		assert.False(t, g.Fallback)
		for round, declared := range g.DeclaredTickets {
			assert.Len(t, g.RoundTickets[round], int(declared), "group %s round %d", g.TxHash.Hex(), round)
		}
		for _, id := range g.TicketIDs() {
			seen[id]++
			total++
		}
	}

	want := 0
	for _, set := range tickets {
		want += len(set)
		for _, tk := range set {
			assert.Equal(t, 1, seen[tk.TicketID], "ticket %d assigned once", tk.TicketID)
		}
	}
	assert.Equal(t, want, total)
}

func TestReconstructPurchases_Idempotent(t *testing.T) {
	t.Parallel()

	evs := []*entities.RawEvent{
		testhelpers.MultiRoundPurchase("m", 11, 2, 1, 3, 2, 60),
		testhelpers.SingleRoundPurchase("s", 10, 0, 2, 1, 10),
	}
	tickets := ticketsByRound(
		testhelpers.SequentialTickets(1, 1, 2),
		testhelpers.SequentialTickets(2, 10, 4),
		testhelpers.SequentialTickets(3, 20, 2),
	)

	first := ReconstructPurchases(testhelpers.TestPlayer, evs, tickets)
	second := ReconstructPurchases(testhelpers.TestPlayer, evs, tickets)

	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.Tickets, second.Tickets)
	for _, set := range tickets {
		for _, tk := range set {
			assert.Equal(t, common.Hash{}, tk.OwnerGroup, "input tickets are not mutated")
		}
	}
}

func TestReconstructPurchases_OrphanTicketsFallBack(t *testing.T) {
	t.Parallel()

	evs := []*entities.RawEvent{
		testhelpers.SingleRoundPurchase("s", 10, 0, 7, 1, 10),
	}
	tickets := ticketsByRound(
		testhelpers.SequentialTickets(7, 1, 3),
		testhelpers.SequentialTickets(8, 50, 2),
	)

	rec := ReconstructPurchases(testhelpers.TestPlayer, evs, tickets)

	require.Len(t, rec.Groups, 3)
	assert.Equal(t, []uint64{1}, rec.Groups[0].TicketIDs())

	fb7, fb8 := rec.Groups[1], rec.Groups[2]
	assert.True(t, fb7.Fallback)
	assert.Equal(t, uint64(7), fb7.StartRound)
	assert.Equal(t, []uint64{2, 3}, fb7.TicketIDs())
	assert.True(t, fb8.Fallback)
	assert.Equal(t, entities.RoundRange{Start: 8, End: 8}, fb8.Range())
	assert.Equal(t, []uint64{50, 51}, fb8.TicketIDs())

	require.Len(t, rec.Anomalies, 2)
	for _, err := range rec.Anomalies {
		assert.True(t, errors.Is(err, entities.ErrInconsistentLog))
	}
}

func TestReconstructPurchases_Shortfall(t *testing.T) {
	t.Parallel()

	evs := []*entities.RawEvent{
		testhelpers.SingleRoundPurchase("s", 10, 0, 3, 4, 40),
	}
	rec := ReconstructPurchases(testhelpers.TestPlayer, evs, ticketsByRound(testhelpers.SequentialTickets(3, 1, 2)))

	require.Len(t, rec.Groups, 1)
	assert.Equal(t, map[uint64]uint64{3: 2}, rec.Groups[0].Shortfall())
	require.Len(t, rec.Anomalies, 1)
	assert.ErrorIs(t, rec.Anomalies[0], entities.ErrInconsistentLog)
}

func TestReconstructPurchases_SinglesFoldIntoMultiRoundTx(t *testing.T) {
	t.Parallel()

	evs := []*entities.RawEvent{
		testhelpers.SingleRoundPurchase("m", 10, 0, 3, 1, 10),
		testhelpers.SingleRoundPurchase("m", 10, 1, 4, 1, 10),
		testhelpers.MultiRoundPurchase("m", 10, 2, 3, 4, 1, 20),
		testhelpers.ClaimEvent("c", 12, 0, 3, 99),
	}
	tickets := ticketsByRound(
		testhelpers.SequentialTickets(3, 1, 1),
		testhelpers.SequentialTickets(4, 2, 1),
	)

	rec := ReconstructPurchases(testhelpers.TestPlayer, evs, tickets)

	require.Len(t, rec.Groups, 1)
	g := rec.Groups[0]
	assert.Equal(t, uint64(3), g.StartRound)
	assert.Equal(t, uint64(4), g.EndRound)
	assert.Equal(t, []uint64{1, 2}, g.TicketIDs())
	assert.Equal(t, big.NewInt(20), g.TotalCost)
	assert.Empty(t, rec.Anomalies)
}

func TestReconstructPurchases_DuplicateLogsIgnored(t *testing.T) {
	t.Parallel()

	ev := testhelpers.SingleRoundPurchase("s", 10, 0, 1, 2, 20)
	dup := *ev
	rec := ReconstructPurchases(testhelpers.TestPlayer, []*entities.RawEvent{ev, &dup}, ticketsByRound(testhelpers.SequentialTickets(1, 1, 2)))

	require.Len(t, rec.Groups, 1)
	assert.Equal(t, []uint64{1, 2}, rec.Groups[0].TicketIDs())
	assert.Empty(t, rec.Anomalies)
}
