package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSplitBlockRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from, to uint64
		size     uint64
		want     []blockRange
	}{
		{
			name: "single query when size is zero",
			from: 10, to: 500, size: 0,
			want: []blockRange{{10, 500}},
		},
		{
			name: "uneven chunks",
			from: 100, to: 349, size: 100,
			want: []blockRange{{100, 199}, {200, 299}, {300, 349}},
		},
		{
			name: "single block",
			from: 7, to: 7, size: 100,
			want: []blockRange{{7, 7}},
		},
		{
			name: "empty when to precedes from",
			from: 8, to: 7, size: 100,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitBlockRange(tt.from, tt.to, tt.size))
		})
	}
}

func TestEventIngestor_Ingest(t *testing.T) {
	t.Parallel()

	player := testhelpers.TestPlayer
	ctx := context.Background()

	t.Run("chunks, dedupes and orders events", func(t *testing.T) {
		t.Parallel()

		source := new(testhelpers.MockLedgerLogSource)
		late := testhelpers.SingleRoundPurchase("b", 310, 0, 2, 1, 10)
		early := testhelpers.SingleRoundPurchase("a", 150, 4, 1, 2, 20)
		earlySameBlock := testhelpers.SingleRoundPurchase("a", 150, 1, 1, 1, 10)

		source.On("LatestBlock", ctx).Return(uint64(349), nil)
		source.On("FetchEvents", ctx, player, uint64(100), uint64(199)).Return([]*entities.RawEvent{early, earlySameBlock}, nil)
		source.On("FetchEvents", ctx, player, uint64(200), uint64(299)).Return([]*entities.RawEvent{early}, nil)
		source.On("FetchEvents", ctx, player, uint64(300), uint64(349)).Return([]*entities.RawEvent{late}, nil)

		ingestor := NewEventIngestor(source, 100, 100)
		got, err := ingestor.Ingest(ctx, player)
		require.NoError(t, err)

		require.Len(t, got, 3)
		assert.Equal(t, uint(1), got[0].LogIndex)
		assert.Equal(t, uint(4), got[1].LogIndex)
		assert.Equal(t, uint64(310), got[2].BlockNumber)
		source.AssertExpectations(t)
		source.AssertNotCalled(t, "BlockTimestamp", mock.Anything, mock.Anything)
	})

	t.Run("fetch failure fails the whole call", func(t *testing.T) {
		t.Parallel()

		source := new(testhelpers.MockLedgerLogSource)
		source.On("LatestBlock", ctx).Return(uint64(250), nil)
		source.On("FetchEvents", ctx, player, uint64(100), uint64(199)).Return([]*entities.RawEvent{}, nil)
		source.On("FetchEvents", ctx, player, uint64(200), uint64(250)).Return(nil, entities.ErrNetwork)

		ingestor := NewEventIngestor(source, 100, 100)
		got, err := ingestor.Ingest(ctx, player)

		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, entities.ErrNetwork))
		assert.Contains(t, err.Error(), "blocks 200-250")
	})

	t.Run("head before deploy block", func(t *testing.T) {
		t.Parallel()

		source := new(testhelpers.MockLedgerLogSource)
		source.On("LatestBlock", ctx).Return(uint64(50), nil)

		got, err := NewEventIngestor(source, 100, 100).Ingest(ctx, player)
		require.NoError(t, err)
		assert.Empty(t, got)
		source.AssertNotCalled(t, "FetchEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("latest block failure", func(t *testing.T) {
		t.Parallel()

		source := new(testhelpers.MockLedgerLogSource)
		source.On("LatestBlock", ctx).Return(uint64(0), errors.New("dial tcp: connection refused"))

		_, err := NewEventIngestor(source, 0, 0).Ingest(ctx, player)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get latest block")
	})

	t.Run("fills timestamps once per block", func(t *testing.T) {
		t.Parallel()

		source := new(testhelpers.MockLedgerLogSource)
		first := &entities.RawEvent{Kind: entities.EventKindPurchaseSingle, TxHash: testhelpers.TxHash("x"), BlockNumber: 5, LogIndex: 0, RoundIDs: []uint64{1}, TicketCounts: []uint64{1}}
		second := &entities.RawEvent{Kind: entities.EventKindPurchaseSingle, TxHash: testhelpers.TxHash("y"), BlockNumber: 5, LogIndex: 1, RoundIDs: []uint64{1}, TicketCounts: []uint64{1}}
		third := &entities.RawEvent{Kind: entities.EventKindClaim, TxHash: testhelpers.TxHash("z"), BlockNumber: 9, LogIndex: 0, RoundIDs: []uint64{1}}
		ts := time.Unix(1_700_000_000, 0).UTC()

		source.On("LatestBlock", ctx).Return(uint64(10), nil)
		source.On("FetchEvents", ctx, player, uint64(0), uint64(10)).Return([]*entities.RawEvent{third, second, first}, nil)
		source.On("BlockTimestamp", ctx, uint64(5)).Return(ts, nil).Once()
		source.On("BlockTimestamp", ctx, uint64(9)).Return(time.Time{}, errors.New("header not found")).Once()

		got, err := NewEventIngestor(source, 0, 0).Ingest(ctx, player)
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, ts, got[0].Timestamp)
		assert.Equal(t, ts, got[1].Timestamp)
		assert.True(t, got[2].Timestamp.IsZero())
		assert.True(t, first.Timestamp.IsZero(), "input events are not mutated")
		source.AssertExpectations(t)
	})
}
