package testutil

import (
	"math/big"
	"time"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// CreateTestReceipt creates a confirmed claim receipt with default values
func CreateTestReceipt(player common.Address, roundID uint64) *entities.ClaimReceipt {
	return &entities.ClaimReceipt{
		Player:      player,
		RoundID:     roundID,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(0xc1a1<<16 | roundID)),
		BlockNumber: 1_000 + roundID,
		Amount:      new(big.Int).Mul(big.NewInt(int64(roundID)), big.NewInt(1e18)),
		ConfirmedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// CreateTestReceiptWithAmount creates a receipt carrying amount
func CreateTestReceiptWithAmount(player common.Address, roundID uint64, amount *big.Int) *entities.ClaimReceipt {
	r := CreateTestReceipt(player, roundID)
	r.Amount = amount
	return r
}
