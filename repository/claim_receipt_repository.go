package repository

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/interfaces"
	"lottoclaim/infrastructure/observability"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgtype"
)

const claimReceiptRepositoryName = "claim_receipt"

// ClaimReceiptRepository implements claim receipt data access for one player
type ClaimReceiptRepository struct {
	q       Queryable
	player  common.Address
	metrics *observability.MetricsProvider
}

// NewClaimReceiptRepositoryScoped creates a receipt repository scoped to player
func NewClaimReceiptRepositoryScoped(q Queryable, player common.Address) *ClaimReceiptRepository {
	return &ClaimReceiptRepository{
		q:      q,
		player: player,
	}
}

// GetAll returns the player's receipts keyed by round ID
func (r *ClaimReceiptRepository) GetAll(ctx context.Context) (map[uint64]*entities.ClaimReceipt, error) {
	defer r.metrics.MeasureDatabaseQuery(claimReceiptRepositoryName, "GetAll")()

	query := `
		SELECT round_id, tx_hash, block_number, amount::text, confirmed_at
		FROM claim_receipts
		WHERE player_address = $1
		ORDER BY round_id ASC
	`

	rows, err := r.q.Query(ctx, query, r.player.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to get claim receipts for %s: %w", r.player.Hex(), err)
	}
	defer rows.Close()

	receipts := make(map[uint64]*entities.ClaimReceipt)
	for rows.Next() {
		var (
			roundID     int64
			txHash      string
			blockNumber int64
			amount      string
			confirmedAt time.Time
		)
		if err := rows.Scan(&roundID, &txHash, &blockNumber, &amount, &confirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim receipt: %w", err)
		}

		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q for round %d", amount, roundID)
		}
		receipts[uint64(roundID)] = &entities.ClaimReceipt{
			Player:      r.player,
			RoundID:     uint64(roundID),
			TxHash:      common.HexToHash(txHash),
			BlockNumber: uint64(blockNumber),
			Amount:      value,
			ConfirmedAt: confirmedAt,
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claim receipts: %w", err)
	}
	return receipts, nil
}

// Save upserts receipts in a single statement
func (r *ClaimReceiptRepository) Save(ctx context.Context, receipts []*entities.ClaimReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	defer r.metrics.MeasureDatabaseQuery(claimReceiptRepositoryName, "Save")()

	var query strings.Builder
	query.WriteString(`
		INSERT INTO claim_receipts (player_address, round_id, tx_hash, block_number, amount, confirmed_at)
		VALUES `)

	values := make([]interface{}, 0, len(receipts)*6)
	for i, receipt := range receipts {
		if receipt.RoundID > math.MaxInt64 || receipt.BlockNumber > math.MaxInt64 {
			return fmt.Errorf("claim receipt for round %d out of range", receipt.RoundID)
		}
		if i > 0 {
			query.WriteString(", ")
		}
		p := i * 6
		fmt.Fprintf(&query, "($%d, $%d, $%d, $%d, $%d, $%d)", p+1, p+2, p+3, p+4, p+5, p+6)

		amount := pgtype.Numeric{Int: new(big.Int), Valid: true}
		if receipt.Amount != nil {
			amount.Int = receipt.Amount
		}
		confirmedAt := receipt.ConfirmedAt
		if confirmedAt.IsZero() {
			confirmedAt = time.Now().UTC()
		}
		values = append(values, r.player.Hex(), int64(receipt.RoundID), receipt.TxHash.Hex(),
			int64(receipt.BlockNumber), amount, confirmedAt)
	}
	query.WriteString(`
		ON CONFLICT (player_address, round_id) DO UPDATE SET
			tx_hash = EXCLUDED.tx_hash,
			block_number = EXCLUDED.block_number,
			amount = EXCLUDED.amount,
			confirmed_at = EXCLUDED.confirmed_at`)

	if _, err := r.q.Exec(ctx, query.String(), values...); err != nil {
		return fmt.Errorf("failed to save %d claim receipts: %w", len(receipts), err)
	}
	return nil
}

// Delete removes the player's receipts for roundIDs
func (r *ClaimReceiptRepository) Delete(ctx context.Context, roundIDs []uint64) error {
	if len(roundIDs) == 0 {
		return nil
	}
	defer r.metrics.MeasureDatabaseQuery(claimReceiptRepositoryName, "Delete")()

	ids := make([]int64, 0, len(roundIDs))
	for _, id := range roundIDs {
		if id > math.MaxInt64 {
			continue
		}
		ids = append(ids, int64(id))
	}

	query := `DELETE FROM claim_receipts WHERE player_address = $1 AND round_id = ANY($2)`
	if _, err := r.q.Exec(ctx, query, r.player.Hex(), ids); err != nil {
		return fmt.Errorf("failed to delete claim receipts: %w", err)
	}
	return nil
}

// ClaimReceiptStore hands out player-scoped receipt repositories over one pool
type ClaimReceiptStore struct {
	q       Queryable
	metrics *observability.MetricsProvider
}

// NewClaimReceiptStore creates a store; metrics may be nil
func NewClaimReceiptStore(q Queryable, metrics *observability.MetricsProvider) *ClaimReceiptStore {
	return &ClaimReceiptStore{q: q, metrics: metrics}
}

func (s *ClaimReceiptStore) ForPlayer(player common.Address) interfaces.ClaimReceiptRepository {
	repo := NewClaimReceiptRepositoryScoped(s.q, player)
	repo.metrics = s.metrics
	return repo
}
