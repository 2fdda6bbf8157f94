package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/interfaces"
	"lottoclaim/infrastructure/observability"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// ClaimWorker periodically reconciles one player and optionally claims what is owed
type ClaimWorker struct {
	reconciler   interfaces.ReconciliationService
	orchestrator interfaces.BatchClaimOrchestrator
	metrics      *observability.MetricsProvider
	player       common.Address
	interval     time.Duration
	autoClaim    bool

	mu         sync.RWMutex
	latest     *entities.ReconciliationSnapshot
	lastErr    error
	lastRunAt  time.Time
	lastReport *entities.ClaimReport
	// uncertain holds the rounds of claim transactions whose outcome is still unknown
	uncertain map[common.Hash][]uint64
}

// NewClaimWorker creates a worker. orchestrator may be nil when no signing key is configured;
// auto-claim is then disabled.
func NewClaimWorker(
	reconciler interfaces.ReconciliationService,
	orchestrator interfaces.BatchClaimOrchestrator,
	metrics *observability.MetricsProvider,
	player common.Address,
	interval time.Duration,
	autoClaim bool,
) *ClaimWorker {
	if orchestrator == nil && autoClaim {
		log.Warn("Auto-claim requested without a signing key; claims disabled")
		autoClaim = false
	}
	return &ClaimWorker{
		reconciler:   reconciler,
		orchestrator: orchestrator,
		metrics:      metrics,
		player:       player,
		interval:     interval,
		autoClaim:    autoClaim,
		uncertain:    make(map[common.Hash][]uint64),
	}
}

// Start begins the reconciliation loop and returns a stop function
func (w *ClaimWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.WithFields(log.Fields{
			"player":     w.player.Hex(),
			"interval":   w.interval,
			"auto_claim": w.autoClaim,
		}).Info("Claim worker started")

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			w.tick(ctx)

			select {
			case <-ctx.Done():
				log.Info("Claim worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Claim worker shutting down (stop requested)...")
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopChan) })
		<-done
	}
}

// tick runs one reconciliation and, when enabled, one claim run
func (w *ClaimWorker) tick(ctx context.Context) {
	snap, err := w.RunOnce(ctx)
	if err != nil {
		log.WithError(err).WithField("player", w.player.Hex()).Error("Reconciliation failed")
		return
	}
	if w.orchestrator != nil {
		w.releaseSettled(ctx, snap)
	}
	if !w.autoClaim || len(snap.Claimable) == 0 {
		return
	}

	roundIDs, ok := w.autoClaimRounds(snap)
	if !ok {
		log.WithField("player", w.player.Hex()).Debug("Claimable rounds await uncertain claims")
		return
	}
	report, err := w.Claim(ctx, roundIDs)
	if err != nil {
		if errors.Is(err, entities.ErrNothingToClaim) {
			return
		}
		log.WithError(err).WithField("player", w.player.Hex()).Error("Auto-claim failed")
		if report == nil {
			return
		}
	}
	log.WithFields(log.Fields{
		"player":  w.player.Hex(),
		"summary": report.Summary(),
		"claimed": entities.FormatTokenAmount(report.TotalConfirmed),
	}).Info("Auto-claim finished")
}

// RunOnce reconciles the player and stores the snapshot as the latest view
func (w *ClaimWorker) RunOnce(ctx context.Context) (*entities.ReconciliationSnapshot, error) {
	start := time.Now()
	snap, err := w.reconciler.Reconcile(ctx, w.player)
	w.metrics.RecordReconciliation(snap, time.Since(start))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRunAt = start
	w.lastErr = err
	if err != nil {
		return nil, err
	}
	w.latest = snap

	log.WithFields(log.Fields{
		"player":          w.player.Hex(),
		"groups":          len(snap.Groups),
		"tickets":         len(snap.Tickets),
		"claimable":       len(snap.Claimable),
		"total_claimable": entities.FormatTokenAmount(snap.TotalClaimable),
		"warnings":        len(snap.Warnings),
		"duration":        time.Since(start),
	}).Info("Reconciliation complete")
	return snap, nil
}

// Claim claims roundIDs (all claimable rounds when empty) from a fresh enough snapshot
func (w *ClaimWorker) Claim(ctx context.Context, roundIDs []uint64) (*entities.ClaimReport, error) {
	if w.orchestrator == nil {
		return nil, entities.ErrNoSigner
	}

	w.mu.RLock()
	prior := w.latest
	w.mu.RUnlock()

	selections, snap, err := w.reconciler.PrepareClaim(ctx, w.player, prior, roundIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare claim: %w", err)
	}
	if snap != prior {
		w.mu.Lock()
		w.latest = snap
		w.mu.Unlock()
	}
	if len(selections) == 0 {
		return nil, entities.ErrNothingToClaim
	}

	report, err := w.orchestrator.ClaimRounds(ctx, w.player, selections)
	if report != nil {
		w.recordReport(report)
		w.refresh(ctx)
	}
	return report, err
}

// ClaimRound claims a single round after live preflight checks
func (w *ClaimWorker) ClaimRound(ctx context.Context, roundID uint64) (*entities.ClaimReport, error) {
	if w.orchestrator == nil {
		return nil, entities.ErrNoSigner
	}
	report, err := w.orchestrator.ClaimRound(ctx, w.player, roundID)
	if report != nil {
		w.recordReport(report)
		w.refresh(ctx)
	}
	return report, err
}

func (w *ClaimWorker) recordReport(report *entities.ClaimReport) {
	w.metrics.RecordClaimReport(report)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastReport = report
	for _, b := range report.Uncertain {
		if b.TxRef != nil {
			w.uncertain[*b.TxRef] = b.RoundIDs()
		}
	}
}

// autoClaimRounds returns the claimable rounds not covered by an uncertain transaction.
// nil means every claimable round; ok is false when all of them are covered.
func (w *ClaimWorker) autoClaimRounds(snap *entities.ReconciliationSnapshot) ([]uint64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.uncertain) == 0 {
		return nil, true
	}

	held := make(map[uint64]bool)
	for _, rounds := range w.uncertain {
		for _, r := range rounds {
			held[r] = true
		}
	}
	var roundIDs []uint64
	for _, rec := range snap.Claimable {
		if !held[rec.RoundID] {
			roundIDs = append(roundIDs, rec.RoundID)
		}
	}
	return roundIDs, len(roundIDs) > 0
}

// releaseSettled forgets uncertain transactions whose rounds are no longer claimable
// or whose receipt has appeared
func (w *ClaimWorker) releaseSettled(ctx context.Context, snap *entities.ReconciliationSnapshot) {
	w.mu.RLock()
	pending := make(map[common.Hash][]uint64, len(w.uncertain))
	for tx, rounds := range w.uncertain {
		pending[tx] = rounds
	}
	w.mu.RUnlock()
	if len(pending) == 0 {
		return
	}

	claimable := make(map[uint64]bool, len(snap.Claimable))
	for _, rec := range snap.Claimable {
		claimable[rec.RoundID] = true
	}

	for tx, rounds := range pending {
		fields := log.Fields{"tx_hash": tx.Hex(), "rounds": len(rounds)}
		settled := true
		for _, r := range rounds {
			if claimable[r] {
				settled = false
				break
			}
		}
		if !settled {
			conf, err := w.orchestrator.CheckSubmitted(ctx, tx)
			if err != nil {
				log.WithError(err).WithFields(fields).Debug("Uncertain claim lookup failed")
				continue
			}
			if conf == nil {
				continue
			}
			fields["succeeded"] = conf.Succeeded
			fields["block_number"] = conf.BlockNumber
		}

		w.mu.Lock()
		delete(w.uncertain, tx)
		w.mu.Unlock()
		log.WithFields(fields).Info("Uncertain claim settled")
	}
}

// refresh re-reconciles after a claim so the latest view reflects it; failures only log
func (w *ClaimWorker) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.RunOnce(ctx); err != nil {
		log.WithError(err).Warn("Failed to refresh after claim")
	}
}

// WorkerStatus is a point-in-time view of the worker
type WorkerStatus struct {
	Player     common.Address
	Latest     *entities.ReconciliationSnapshot
	LastRunAt  time.Time
	LastErr    error
	LastReport *entities.ClaimReport
	AutoClaim  bool
	CanClaim   bool
}

func (w *ClaimWorker) Status() WorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerStatus{
		Player:     w.player,
		Latest:     w.latest,
		LastRunAt:  w.lastRunAt,
		LastErr:    w.lastErr,
		LastReport: w.lastReport,
		AutoClaim:  w.autoClaim,
		CanClaim:   w.orchestrator != nil,
	}
}
