package interfaces

import (
	"context"
	"math/big"
	"time"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerLogSource reads decoded purchase and claim logs from the ledger
type LedgerLogSource interface {
	// LatestBlock returns the current head block number
	LatestBlock(ctx context.Context) (uint64, error)
	// FetchEvents returns player events emitted in [fromBlock, toBlock], in any order
	FetchEvents(ctx context.Context, player common.Address, fromBlock, toBlock uint64) ([]*entities.RawEvent, error)
	// BlockTimestamp returns the timestamp of a block
	BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// LedgerReader exposes the read-only lottery contract queries
type LedgerReader interface {
	GetRound(ctx context.Context, roundID uint64) (*entities.RoundRecord, error)
	PlayerTickets(ctx context.Context, roundID uint64, player common.Address) ([]*entities.Ticket, error)
	HasClaimed(ctx context.Context, roundID uint64, player common.Address) (bool, error)
	ClaimableWinnings(ctx context.Context, roundID uint64, player common.Address) (*big.Int, error)
	CurrentRound(ctx context.Context) (uint64, error)
}

// ClaimSubmitter drives claim writes against the ledger.
// Submission is irrevocable: abandoning AwaitConfirmation never retracts a sent transaction.
type ClaimSubmitter interface {
	// Sender returns the address claims are sent from
	Sender() common.Address
	// SimulateClaim dry-runs the claim and returns ErrRevertedOnChain if it would revert
	SimulateClaim(ctx context.Context, roundIDs []uint64) error
	// SubmitClaim signs and sends the claim, returning its transaction reference.
	// When the broadcast outcome is unknown it returns the reference with ErrSubmissionUncertain.
	SubmitClaim(ctx context.Context, roundIDs []uint64) (common.Hash, error)
	// AwaitConfirmation waits a bounded time for the transaction to be mined.
	// It returns ErrConfirmationTimeout when the outcome is still unknown.
	AwaitConfirmation(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error)
	// ReceiptStatus checks once whether the transaction was mined; nil means not yet
	ReceiptStatus(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error)
}
