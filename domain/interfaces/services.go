package interfaces

import (
	"context"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// EventIngestor fetches and orders a player's ledger events
type EventIngestor interface {
	// Ingest rescans the configured range and returns events sorted by (block, log index)
	Ingest(ctx context.Context, player common.Address) ([]*entities.RawEvent, error)
}

// ClaimStatusResolver classifies a player's rounds against live claim status
type ClaimStatusResolver interface {
	// Resolve classifies each round. hints are display-only transaction references keyed by round.
	Resolve(ctx context.Context, player common.Address, owed []entities.RoundAmount, hints map[uint64]common.Hash) (*entities.ClaimResolution, error)
}

// BatchClaimOrchestrator submits claims in sequential bounded batches
type BatchClaimOrchestrator interface {
	ClaimRounds(ctx context.Context, player common.Address, selections []entities.ClaimSelection) (*entities.ClaimReport, error)
	ClaimRound(ctx context.Context, player common.Address, roundID uint64) (*entities.ClaimReport, error)
	// CheckSubmitted reports whether an earlier uncertain transaction has been mined
	CheckSubmitted(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error)
}

// ReconciliationService re-derives the full player view from the ledger
type ReconciliationService interface {
	Reconcile(ctx context.Context, player common.Address) (*entities.ReconciliationSnapshot, error)
	// PrepareClaim returns claim selections from a snapshot no older than the configured max age,
	// re-resolving when prior is missing or stale
	PrepareClaim(ctx context.Context, player common.Address, prior *entities.ReconciliationSnapshot, roundIDs []uint64) ([]entities.ClaimSelection, *entities.ReconciliationSnapshot, error)
}
