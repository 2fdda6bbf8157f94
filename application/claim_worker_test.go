package application

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/testhelpers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var workerPlayer = common.HexToAddress("0x1111111111111111111111111111111111111111")

func snapshotWith(claimable ...uint64) *entities.ReconciliationSnapshot {
	snap := &entities.ReconciliationSnapshot{
		Player:         workerPlayer,
		TotalClaimable: new(big.Int),
		ResolvedAt:     time.Now(),
	}
	for _, id := range claimable {
		rec := &entities.ClaimRecord{RoundID: id, AmountOwed: big.NewInt(100), Status: entities.ClaimStatusClaimable}
		snap.History = append(snap.History, rec)
		snap.Claimable = append(snap.Claimable, rec)
		snap.TotalClaimable.Add(snap.TotalClaimable, rec.AmountOwed)
	}
	return snap
}

func confirmedReport(ids ...uint64) *entities.ClaimReport {
	sel := make([]entities.ClaimSelection, len(ids))
	for i, id := range ids {
		sel[i] = entities.ClaimSelection{RoundID: id, Amount: big.NewInt(100)}
	}
	batch := entities.NewClaimBatch(0, sel)
	batch.State = entities.ClaimBatchConfirmed
	return entities.NewClaimReport(workerPlayer, []*entities.ClaimBatch{batch})
}

func uncertainReport(tx common.Hash, ids ...uint64) *entities.ClaimReport {
	sel := make([]entities.ClaimSelection, len(ids))
	for i, id := range ids {
		sel[i] = entities.ClaimSelection{RoundID: id, Amount: big.NewInt(100)}
	}
	batch := entities.NewClaimBatch(0, sel)
	_ = batch.MarkSubmitted(tx)
	_ = batch.MarkTimedOut(entities.ErrConfirmationTimeout)
	return entities.NewClaimReport(workerPlayer, []*entities.ClaimBatch{batch})
}

func selectionsOf(ids ...uint64) []entities.ClaimSelection {
	sel := make([]entities.ClaimSelection, len(ids))
	for i, id := range ids {
		sel[i] = entities.ClaimSelection{RoundID: id, Amount: big.NewInt(100)}
	}
	return sel
}

func TestClaimWorker_RunOnce(t *testing.T) {
	t.Parallel()

	t.Run("stores the snapshot", func(t *testing.T) {
		t.Parallel()
		reconciler := new(testhelpers.MockReconciliationService)
		snap := snapshotWith(3)
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(snap, nil).Once()

		w := NewClaimWorker(reconciler, nil, nil, workerPlayer, time.Minute, false)
		got, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Same(t, snap, got)

		st := w.Status()
		assert.Same(t, snap, st.Latest)
		assert.NoError(t, st.LastErr)
		assert.False(t, st.CanClaim)
	})

	t.Run("keeps the previous snapshot on failure", func(t *testing.T) {
		t.Parallel()
		reconciler := new(testhelpers.MockReconciliationService)
		snap := snapshotWith()
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(snap, nil).Once()
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(nil, entities.ErrNetwork).Once()

		w := NewClaimWorker(reconciler, nil, nil, workerPlayer, time.Minute, false)
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		_, err = w.RunOnce(context.Background())
		require.ErrorIs(t, err, entities.ErrNetwork)

		st := w.Status()
		assert.Same(t, snap, st.Latest)
		assert.ErrorIs(t, st.LastErr, entities.ErrNetwork)
	})
}

func TestClaimWorker_Claim(t *testing.T) {
	t.Parallel()

	t.Run("claims from the latest snapshot and refreshes", func(t *testing.T) {
		t.Parallel()
		reconciler := new(testhelpers.MockReconciliationService)
		orchestrator := new(testhelpers.MockBatchClaimOrchestrator)

		before := snapshotWith(3, 4)
		after := snapshotWith()
		selections := []entities.ClaimSelection{{RoundID: 3, Amount: big.NewInt(100)}, {RoundID: 4, Amount: big.NewInt(100)}}
		report := confirmedReport(3, 4)

		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(before, nil).Once()
		reconciler.On("PrepareClaim", mock.Anything, workerPlayer, before, []uint64(nil)).Return(selections, before, nil).Once()
		orchestrator.On("ClaimRounds", mock.Anything, workerPlayer, selections).Return(report, nil).Once()
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(after, nil).Once()

		w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Minute, false)
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)

		got, err := w.Claim(context.Background(), nil)
		require.NoError(t, err)
		assert.Same(t, report, got)

		st := w.Status()
		assert.Same(t, after, st.Latest)
		assert.Same(t, report, st.LastReport)
		reconciler.AssertExpectations(t)
		orchestrator.AssertExpectations(t)
	})

	t.Run("nothing claimable", func(t *testing.T) {
		t.Parallel()
		reconciler := new(testhelpers.MockReconciliationService)
		orchestrator := new(testhelpers.MockBatchClaimOrchestrator)
		fresh := snapshotWith()
		reconciler.On("PrepareClaim", mock.Anything, workerPlayer, (*entities.ReconciliationSnapshot)(nil), []uint64{9}).Return(nil, fresh, nil).Once()

		w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Minute, false)
		_, err := w.Claim(context.Background(), []uint64{9})
		assert.ErrorIs(t, err, entities.ErrNothingToClaim)
		assert.Same(t, fresh, w.Status().Latest)
		orchestrator.AssertNotCalled(t, "ClaimRounds", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("prepare failure", func(t *testing.T) {
		t.Parallel()
		reconciler := new(testhelpers.MockReconciliationService)
		orchestrator := new(testhelpers.MockBatchClaimOrchestrator)
		reconciler.On("PrepareClaim", mock.Anything, workerPlayer, mock.Anything, mock.Anything).Return(nil, nil, entities.ErrNetwork).Once()

		w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Minute, false)
		_, err := w.Claim(context.Background(), nil)
		assert.ErrorIs(t, err, entities.ErrNetwork)
	})

	t.Run("without a signer", func(t *testing.T) {
		t.Parallel()
		w := NewClaimWorker(new(testhelpers.MockReconciliationService), nil, nil, workerPlayer, time.Minute, true)
		_, err := w.Claim(context.Background(), nil)
		assert.ErrorIs(t, err, entities.ErrNoSigner)
		_, err = w.ClaimRound(context.Background(), 1)
		assert.ErrorIs(t, err, entities.ErrNoSigner)
		assert.False(t, w.Status().AutoClaim)
	})
}

func TestClaimWorker_ClaimRound(t *testing.T) {
	t.Parallel()

	reconciler := new(testhelpers.MockReconciliationService)
	orchestrator := new(testhelpers.MockBatchClaimOrchestrator)
	report := confirmedReport(7)

	orchestrator.On("ClaimRound", mock.Anything, workerPlayer, uint64(7)).Return(report, nil).Once()
	reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(nil, errors.New("rpc down")).Once()

	w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Minute, false)
	got, err := w.ClaimRound(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, report, got)
	// a failed refresh does not fail the claim
	assert.Error(t, w.Status().LastErr)

	orchestrator.On("ClaimRound", mock.Anything, workerPlayer, uint64(8)).Return(nil, entities.ErrAlreadyClaimed).Once()
	_, err = w.ClaimRound(context.Background(), 8)
	assert.ErrorIs(t, err, entities.ErrAlreadyClaimed)
}

func TestClaimWorker_KeepsPartialReport(t *testing.T) {
	t.Parallel()

	t.Run("claim cancelled between batches", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		reconciler := new(testhelpers.MockReconciliationService)
		orchestrator := new(testhelpers.MockBatchClaimOrchestrator)
		selections := selectionsOf(1, 2)
		partial := confirmedReport(1)

		reconciler.On("PrepareClaim", mock.Anything, workerPlayer, mock.Anything, []uint64(nil)).Return(selections, snapshotWith(1, 2), nil).Once()
		orchestrator.On("ClaimRounds", mock.Anything, workerPlayer, selections).
			Run(func(mock.Arguments) { cancel() }).
			Return(partial, context.Canceled).Once()

		w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Minute, false)
		got, err := w.Claim(ctx, nil)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Same(t, partial, got)
		assert.Same(t, partial, w.Status().LastReport)
		// no refresh once the context is done
		reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
	})

	t.Run("claim round cancelled after submission", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		reconciler := new(testhelpers.MockReconciliationService)
		orchestrator := new(testhelpers.MockBatchClaimOrchestrator)
		partial := uncertainReport(testhelpers.TxHash("cut"), 4)

		orchestrator.On("ClaimRound", mock.Anything, workerPlayer, uint64(4)).Return(partial, context.Canceled).Once()

		w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Minute, false)
		got, err := w.ClaimRound(ctx, 4)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Same(t, partial, got)
		assert.Same(t, partial, w.Status().LastReport)
		assert.Contains(t, w.uncertain, testhelpers.TxHash("cut"))
	})
}

func TestClaimWorker_UncertainRoundsNotResubmitted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tx := testhelpers.TxHash("unknown")

	t.Run("held until no longer claimable", func(t *testing.T) {
		t.Parallel()
		reconciler := new(testhelpers.MockReconciliationService)
		orchestrator := new(testhelpers.MockBatchClaimOrchestrator)

		first, afterFirst := snapshotWith(5), snapshotWith(5)
		second, afterSecond := snapshotWith(5, 6), snapshotWith(5)
		third, fourth := snapshotWith(5), snapshotWith()

		// tick 1: round 5 goes out and its outcome is unknown
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(first, nil).Once()
		reconciler.On("PrepareClaim", mock.Anything, workerPlayer, first, []uint64(nil)).Return(selectionsOf(5), first, nil).Once()
		orchestrator.On("ClaimRounds", mock.Anything, workerPlayer, selectionsOf(5)).Return(uncertainReport(tx, 5), nil).Once()
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(afterFirst, nil).Once()
		// tick 2: only the new round 6 is claimed
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(second, nil).Once()
		reconciler.On("PrepareClaim", mock.Anything, workerPlayer, second, []uint64{6}).Return(selectionsOf(6), second, nil).Once()
		orchestrator.On("ClaimRounds", mock.Anything, workerPlayer, selectionsOf(6)).Return(confirmedReport(6), nil).Once()
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(afterSecond, nil).Once()
		// tick 3: still unmined, nothing to claim
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(third, nil).Once()
		// tick 4: the ledger shows round 5 claimed
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(fourth, nil).Once()
		orchestrator.On("CheckSubmitted", mock.Anything, tx).Return(nil, nil)

		w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Hour, true)
		for i := 0; i < 4; i++ {
			w.tick(ctx)
		}

		orchestrator.AssertNumberOfCalls(t, "ClaimRounds", 2)
		orchestrator.AssertNumberOfCalls(t, "CheckSubmitted", 2)
		reconciler.AssertExpectations(t)
		assert.Empty(t, w.uncertain)
	})

	t.Run("released once the receipt appears", func(t *testing.T) {
		t.Parallel()
		reconciler := new(testhelpers.MockReconciliationService)
		orchestrator := new(testhelpers.MockBatchClaimOrchestrator)

		owed := snapshotWith(5)
		reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(owed, nil)
		reconciler.On("PrepareClaim", mock.Anything, workerPlayer, owed, []uint64(nil)).Return(selectionsOf(5), owed, nil)
		orchestrator.On("ClaimRounds", mock.Anything, workerPlayer, selectionsOf(5)).Return(uncertainReport(tx, 5), nil).Once()
		orchestrator.On("CheckSubmitted", mock.Anything, tx).Return(nil, nil).Once()
		orchestrator.On("CheckSubmitted", mock.Anything, tx).
			Return(&entities.ClaimConfirmation{TxHash: tx, BlockNumber: 40, Succeeded: false}, nil).Once()
		orchestrator.On("ClaimRounds", mock.Anything, workerPlayer, selectionsOf(5)).Return(confirmedReport(5), nil).Once()

		w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Hour, true)

		w.tick(ctx)
		w.tick(ctx)
		orchestrator.AssertNumberOfCalls(t, "ClaimRounds", 1)

		// the reverted transaction frees round 5 for a new claim
		w.tick(ctx)
		orchestrator.AssertNumberOfCalls(t, "ClaimRounds", 2)
		orchestrator.AssertExpectations(t)
		assert.Empty(t, w.uncertain)
	})
}

func TestClaimWorker_StartAutoClaims(t *testing.T) {
	t.Parallel()

	reconciler := new(testhelpers.MockReconciliationService)
	orchestrator := new(testhelpers.MockBatchClaimOrchestrator)

	owed := snapshotWith(5)
	settled := snapshotWith()
	selections := []entities.ClaimSelection{{RoundID: 5, Amount: big.NewInt(100)}}
	claimed := make(chan struct{})

	reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(owed, nil).Once()
	reconciler.On("PrepareClaim", mock.Anything, workerPlayer, owed, []uint64(nil)).Return(selections, owed, nil).Once()
	orchestrator.On("ClaimRounds", mock.Anything, workerPlayer, selections).Return(confirmedReport(5), nil).Once()
	reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(settled, nil).Once().Run(func(mock.Arguments) {
		close(claimed)
	})

	w := NewClaimWorker(reconciler, orchestrator, nil, workerPlayer, time.Hour, true)
	stop := w.Start(context.Background())

	select {
	case <-claimed:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not claim")
	}
	stop()

	assert.Same(t, settled, w.Status().Latest)
	orchestrator.AssertExpectations(t)
}

func TestClaimWorker_StopsOnCancel(t *testing.T) {
	t.Parallel()

	reconciler := new(testhelpers.MockReconciliationService)
	reconciler.On("Reconcile", mock.Anything, workerPlayer).Return(snapshotWith(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	w := NewClaimWorker(reconciler, nil, nil, workerPlayer, time.Hour, false)
	stop := w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
