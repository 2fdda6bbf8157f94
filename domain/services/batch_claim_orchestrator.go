package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/events"
	"lottoclaim/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// DefaultClaimBatchSize is used when no batch size is configured
const DefaultClaimBatchSize = entities.MaxClaimBatchSize

// batchClaimOrchestrator implements interfaces.BatchClaimOrchestrator
type batchClaimOrchestrator struct {
	submitter      interfaces.ClaimSubmitter
	reader         interfaces.LedgerReader
	receipts       interfaces.ClaimReceiptStore
	eventPublisher interfaces.EventPublisher
	batchSize      int
	now            func() time.Time
}

// NewBatchClaimOrchestrator creates a new orchestrator. submitter may be nil when no signing key is configured.
func NewBatchClaimOrchestrator(
	submitter interfaces.ClaimSubmitter,
	reader interfaces.LedgerReader,
	receipts interfaces.ClaimReceiptStore,
	eventPublisher interfaces.EventPublisher,
	batchSize int,
) interfaces.BatchClaimOrchestrator {
	if batchSize <= 0 || batchSize > entities.MaxClaimBatchSize {
		batchSize = DefaultClaimBatchSize
	}
	return &batchClaimOrchestrator{
		submitter:      submitter,
		reader:         reader,
		receipts:       receipts,
		eventPublisher: eventPublisher,
		batchSize:      batchSize,
		now:            time.Now,
	}
}

// ClaimRounds claims the selected rounds in sorted, sequential batches.
// A failed batch never stops later batches; the report carries every batch outcome.
// If ctx ends between batches, the remaining batches are reported as not attempted.
func (o *batchClaimOrchestrator) ClaimRounds(ctx context.Context, player common.Address, selections []entities.ClaimSelection) (*entities.ClaimReport, error) {
	if o.submitter == nil {
		return nil, entities.ErrNoSigner
	}
	if sender := o.submitter.Sender(); sender != player {
		return nil, fmt.Errorf("signer %s cannot claim for player %s", sender.Hex(), player.Hex())
	}

	batches, err := entities.PlanClaimBatches(selections, o.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to plan claim batches: %w", err)
	}
	if len(batches) == 0 {
		return nil, entities.ErrNothingToClaim
	}

	log.WithFields(log.Fields{
		"player":  player.Hex(),
		"rounds":  len(selections),
		"batches": len(batches),
	}).Info("Starting claim run")

	var runErr error
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		o.runBatch(ctx, player, batch)
		o.publishBatch(player, batch)
	}

	report := entities.NewClaimReport(player, batches)
	o.publishReport(report)

	log.WithFields(log.Fields{
		"player":          player.Hex(),
		"summary":         report.Summary(),
		"total_confirmed": report.TotalConfirmed.String(),
	}).Info("Claim run completed")

	return report, runErr
}

// ClaimRound claims a single round after checking it is still owed
func (o *batchClaimOrchestrator) ClaimRound(ctx context.Context, player common.Address, roundID uint64) (*entities.ClaimReport, error) {
	claimed, err := o.reader.HasClaimed(ctx, roundID, player)
	if err != nil {
		return nil, fmt.Errorf("failed to check claim status for round %d: %w", roundID, err)
	}
	if claimed {
		return nil, fmt.Errorf("round %d: %w", roundID, entities.ErrAlreadyClaimed)
	}

	amount, err := o.reader.ClaimableWinnings(ctx, roundID, player)
	if err != nil {
		return nil, fmt.Errorf("failed to get claimable winnings for round %d: %w", roundID, err)
	}
	if amount == nil || amount.Sign() == 0 {
		return nil, fmt.Errorf("round %d: %w", roundID, entities.ErrNothingToClaim)
	}

	return o.ClaimRounds(ctx, player, []entities.ClaimSelection{{RoundID: roundID, Amount: amount}})
}

// CheckSubmitted looks up the receipt of an earlier uncertain claim once
func (o *batchClaimOrchestrator) CheckSubmitted(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error) {
	if o.submitter == nil {
		return nil, entities.ErrNoSigner
	}
	return o.submitter.ReceiptStatus(ctx, txRef)
}

// runBatch drives one batch through preflight, submission and confirmation
func (o *batchClaimOrchestrator) runBatch(ctx context.Context, player common.Address, batch *entities.ClaimBatch) {
	roundIDs := batch.RoundIDs()
	fields := log.Fields{
		"batch_index": batch.Index,
		"rounds":      len(roundIDs),
		"first_round": roundIDs[0],
		"last_round":  roundIDs[len(roundIDs)-1],
	}

	if err := o.submitter.SimulateClaim(ctx, roundIDs); err != nil {
		o.fail(batch, err, fields, "Claim preflight failed")
		return
	}

	txRef, err := o.submitter.SubmitClaim(ctx, roundIDs)
	uncertain := errors.Is(err, entities.ErrSubmissionUncertain) && txRef != (common.Hash{})
	if err != nil && !uncertain {
		o.fail(batch, err, fields, "Claim submission failed")
		return
	}
	if stateErr := batch.MarkSubmitted(txRef); stateErr != nil {
		// The transaction may be on its way; never leave it looking unsent
		_ = batch.MarkUncertain(txRef, errors.Join(entities.ErrSubmissionUncertain, stateErr))
		log.WithError(stateErr).WithFields(fields).WithField("tx_hash", txRef.Hex()).Error("Claim batch state error")
		return
	}
	fields["tx_hash"] = txRef.Hex()
	if uncertain {
		log.WithError(err).WithFields(fields).Warn("Claim broadcast uncertain, waiting for receipt")
	} else {
		log.WithFields(fields).Info("Claim batch submitted")
	}

	conf, err := o.submitter.AwaitConfirmation(ctx, txRef)
	switch {
	case err != nil:
		// Submitted but unknown: never retried, never reported as failed
		_ = batch.MarkTimedOut(err)
		log.WithError(err).WithFields(fields).Warn("Claim batch confirmation uncertain")
		return
	case !conf.Succeeded:
		_ = batch.MarkFailed(entities.FailureReasonReverted, fmt.Errorf("tx %s: %w", txRef.Hex(), entities.ErrRevertedOnChain))
		log.WithFields(fields).Error("Claim batch reverted")
		return
	}

	_ = batch.MarkConfirmed(conf.BlockNumber)
	fields["block_number"] = conf.BlockNumber
	log.WithFields(fields).Info("Claim batch confirmed")

	o.saveReceipts(ctx, player, batch)
}

func (o *batchClaimOrchestrator) fail(batch *entities.ClaimBatch, err error, fields log.Fields, msg string) {
	reason := entities.FailureReasonOf(err)
	_ = batch.MarkFailed(reason, err)
	entry := log.WithError(err).WithFields(fields).WithField("reason", reason)
	if errors.Is(err, entities.ErrRevertedOnChain) {
		entry.Warn(msg)
		return
	}
	entry.Error(msg)
}

// saveReceipts persists proof of completion. The cache is a display hint, so failures only log.
func (o *batchClaimOrchestrator) saveReceipts(ctx context.Context, player common.Address, batch *entities.ClaimBatch) {
	if o.receipts == nil || batch.TxRef == nil {
		return
	}

	confirmedAt := o.now().UTC()
	receipts := make([]*entities.ClaimReceipt, 0, len(batch.Selections))
	for _, s := range batch.Selections {
		receipts = append(receipts, &entities.ClaimReceipt{
			Player:      player,
			RoundID:     s.RoundID,
			TxHash:      *batch.TxRef,
			BlockNumber: batch.BlockNumber,
			Amount:      s.Amount,
			ConfirmedAt: confirmedAt,
		})
	}

	if err := o.receipts.ForPlayer(player).Save(ctx, receipts); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"batch_index": batch.Index,
			"tx_hash":     batch.TxRef.Hex(),
		}).Warn("Failed to cache claim receipts")
	}
}

func (o *batchClaimOrchestrator) publishBatch(player common.Address, batch *entities.ClaimBatch) {
	if o.eventPublisher == nil || batch.State == entities.ClaimBatchPending {
		return
	}
	event := events.ClaimBatchSettledEvent{
		Player:      player.Hex(),
		BatchIndex:  batch.Index,
		RoundIDs:    batch.RoundIDs(),
		State:       string(batch.State),
		Reason:      string(batch.Reason),
		BlockNumber: batch.BlockNumber,
		Amount:      batch.Amount(),
	}
	if batch.TxRef != nil {
		event.TxHash = batch.TxRef.Hex()
	}
	if err := o.eventPublisher.Publish(event); err != nil {
		log.WithError(err).Warn("Failed to publish claim batch event")
	}
}

func (o *batchClaimOrchestrator) publishReport(report *entities.ClaimReport) {
	if o.eventPublisher == nil {
		return
	}
	event := events.ClaimRunCompletedEvent{
		Player:          report.Player.Hex(),
		Summary:         report.Summary(),
		Batches:         len(report.Batches),
		RoundsRequested: report.RoundsRequested,
		RoundsConfirmed: report.RoundsConfirmed,
		RoundsFailed:    report.RoundsFailed,
		RoundsUncertain: report.RoundsUncertain,
		TotalConfirmed:  report.TotalConfirmed,
	}
	for _, b := range report.Batches {
		if b.TxRef != nil {
			event.TxHashes = append(event.TxHashes, b.TxRef.Hex())
		}
	}
	if err := o.eventPublisher.Publish(event); err != nil {
		log.WithError(err).Warn("Failed to publish claim run event")
	}
}
