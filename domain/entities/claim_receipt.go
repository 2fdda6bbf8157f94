package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimReceipt is a locally persisted proof that a claim confirmed.
// It is a display hint only and never overrides a live status check.
type ClaimReceipt struct {
	Player      common.Address
	RoundID     uint64
	TxHash      common.Hash
	BlockNumber uint64
	Amount      *big.Int
	ConfirmedAt time.Time
}

// ClaimConfirmation is the mined outcome of a submitted claim
type ClaimConfirmation struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Succeeded   bool
}
