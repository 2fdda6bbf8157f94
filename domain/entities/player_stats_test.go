package entities

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLifetimeStats_ProfitLoss(t *testing.T) {
	t.Parallel()

	stats := &LifetimeStats{
		TotalSpent:   big.NewInt(1000),
		TotalClaimed: big.NewInt(600),
		TotalPending: big.NewInt(900),
	}

	assert.Equal(t, big.NewInt(-400), stats.ProfitLoss())
	assert.Equal(t, big.NewInt(500), stats.PotentialProfitLoss())
	assert.Equal(t, int64(5000), stats.ROIBasisPoints())
}

func TestLifetimeStats_ROIWithoutSpend(t *testing.T) {
	t.Parallel()

	stats := &LifetimeStats{TotalSpent: new(big.Int), TotalClaimed: big.NewInt(5), TotalPending: new(big.Int)}
	assert.Equal(t, int64(0), stats.ROIBasisPoints())
}

func TestReconciliationSnapshot_IsStale(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var missing *ReconciliationSnapshot

	assert.True(t, missing.IsStale(now, time.Minute))
	assert.True(t, (&ReconciliationSnapshot{}).IsStale(now, time.Minute))
	assert.True(t, (&ReconciliationSnapshot{ResolvedAt: now.Add(-2 * time.Minute)}).IsStale(now, time.Minute))
	assert.False(t, (&ReconciliationSnapshot{ResolvedAt: now.Add(-30 * time.Second)}).IsStale(now, time.Minute))
}

func TestReconciliationSnapshot_Selections(t *testing.T) {
	t.Parallel()

	snap := &ReconciliationSnapshot{
		Claimable: []*ClaimRecord{
			{RoundID: 4, AmountOwed: big.NewInt(10), Status: ClaimStatusClaimable},
			{RoundID: 8, AmountOwed: big.NewInt(20), Status: ClaimStatusClaimable},
		},
	}

	all, skipped := snap.Selections(nil)
	assert.Len(t, all, 2)
	assert.Empty(t, skipped)

	some, skipped := snap.Selections([]uint64{8, 9})
	assert.Equal(t, []ClaimSelection{{RoundID: 8, Amount: big.NewInt(20)}}, some)
	assert.Equal(t, []uint64{9}, skipped)
}
