package interfaces

import (
	"context"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/events"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimReceiptRepository stores confirmed claim receipts for one player
type ClaimReceiptRepository interface {
	// GetAll returns cached receipts keyed by round ID
	GetAll(ctx context.Context) (map[uint64]*entities.ClaimReceipt, error)
	// Save upserts receipts, replacing any previous receipt for the same round
	Save(ctx context.Context, receipts []*entities.ClaimReceipt) error
	// Delete removes receipts for the given rounds
	Delete(ctx context.Context, roundIDs []uint64) error
}

// ClaimReceiptStore hands out receipt repositories namespaced per player address
type ClaimReceiptStore interface {
	ForPlayer(player common.Address) ClaimReceiptRepository
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
