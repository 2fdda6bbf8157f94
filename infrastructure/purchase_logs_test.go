package infrastructure

import (
	"math/big"
	"testing"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLottery = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testPlayer  = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func wordsData(values ...uint64) []byte {
	data := make([]byte, 32*len(values))
	for i, v := range values {
		new(big.Int).SetUint64(v).FillBytes(data[i*32 : (i+1)*32])
	}
	return data
}

func uintTopic(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

func decodeLog(t *testing.T, vLog types.Log) (*entities.RawEvent, error) {
	t.Helper()
	parsed, err := LotteryABI()
	require.NoError(t, err)
	return DecodeLotteryLog(parsed, vLog)
}

func TestDecodeLotteryLog_TicketsPurchased(t *testing.T) {
	t.Parallel()

	vLog := types.Log{
		Address:     testLottery,
		TxHash:      common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		BlockNumber: 123,
		Index:       7,
		Topics:      []common.Hash{TopicTicketsPurchased, common.BytesToHash(testPlayer.Bytes()), uintTopic(42)},
		Data:        wordsData(3, 1, 2500),
	}

	ev, err := decodeLog(t, vLog)
	require.NoError(t, err)

	assert.Equal(t, entities.EventKindPurchaseSingle, ev.Kind)
	assert.Equal(t, testLottery, ev.Contract)
	assert.Equal(t, testPlayer, ev.Player)
	assert.Equal(t, []uint64{42}, ev.RoundIDs)
	assert.Equal(t, []uint64{3}, ev.TicketCounts)
	assert.Equal(t, uint64(1), ev.FreeTicketsUsed)
	assert.Equal(t, "2500", ev.AmountSpent.String())
	assert.Equal(t, uint64(123), ev.BlockNumber)
	assert.Equal(t, uint(7), ev.LogIndex)
}

func TestDecodeLotteryLog_TicketsPurchasedForRounds(t *testing.T) {
	t.Parallel()

	parsed, err := LotteryABI()
	require.NoError(t, err)

	rounds := []*big.Int{big.NewInt(10), big.NewInt(11), big.NewInt(12)}
	counts := []*big.Int{big.NewInt(2), big.NewInt(2), big.NewInt(2)}
	data, err := parsed.Events["TicketsPurchasedForRounds"].Inputs.NonIndexed().Pack(rounds, counts, big.NewInt(600))
	require.NoError(t, err)

	ev, err := DecodeLotteryLog(parsed, types.Log{
		Address:     testLottery,
		BlockNumber: 9,
		Index:       1,
		Topics:      []common.Hash{TopicTicketsPurchasedForRounds, common.BytesToHash(testPlayer.Bytes())},
		Data:        data,
	})
	require.NoError(t, err)

	assert.Equal(t, entities.EventKindPurchaseMulti, ev.Kind)
	assert.Equal(t, []uint64{10, 11, 12}, ev.RoundIDs)
	assert.Equal(t, []uint64{2, 2, 2}, ev.TicketCounts)
	assert.Equal(t, "600", ev.AmountSpent.String())
	assert.Equal(t, testPlayer, ev.Player)
}

func TestDecodeLotteryLog_WinningsClaimed(t *testing.T) {
	t.Parallel()

	ev, err := decodeLog(t, types.Log{
		Topics: []common.Hash{TopicWinningsClaimed, common.BytesToHash(testPlayer.Bytes()), uintTopic(5)},
		Data:   wordsData(777),
	})
	require.NoError(t, err)

	assert.Equal(t, entities.EventKindClaim, ev.Kind)
	assert.Equal(t, []uint64{5}, ev.RoundIDs)
	assert.Equal(t, "777", ev.AmountSpent.String())
	assert.False(t, ev.IsPurchase())
}

func TestDecodeLotteryLog_Malformed(t *testing.T) {
	t.Parallel()

	playerTopic := common.BytesToHash(testPlayer.Bytes())
	huge := common.HexToHash("0x0100000000000000000000000000000000000000000000000000000000000000")

	tests := []struct {
		name string
		log  types.Log
	}{
		{"no topics", types.Log{}},
		{"unknown event", types.Log{Topics: []common.Hash{common.HexToHash("0x01"), playerTopic}}},
		{"short purchase data", types.Log{Topics: []common.Hash{TopicTicketsPurchased, playerTopic, uintTopic(1)}, Data: wordsData(1, 2)}},
		{"missing round topic", types.Log{Topics: []common.Hash{TopicWinningsClaimed, playerTopic}, Data: wordsData(1)}},
		{"round id overflow", types.Log{Topics: []common.Hash{TopicWinningsClaimed, playerTopic, huge}, Data: wordsData(1)}},
		{"empty claim data", types.Log{Topics: []common.Hash{TopicWinningsClaimed, playerTopic, uintTopic(1)}}},
		{"unaligned purchase data", types.Log{Topics: []common.Hash{TopicTicketsPurchased, playerTopic, uintTopic(1)}, Data: append(wordsData(1, 2, 3), 0x01)}},
		{"extra topic", types.Log{Topics: []common.Hash{TopicTicketsPurchasedForRounds, playerTopic, uintTopic(1)}, Data: wordsData(1)}},
		{"garbage multi-round data", types.Log{Topics: []common.Hash{TopicTicketsPurchasedForRounds, playerTopic}, Data: wordsData(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeLog(t, tt.log)
			require.Error(t, err)
			assert.ErrorIs(t, err, entities.ErrInconsistentLog)
		})
	}
}

func TestEventTopics(t *testing.T) {
	t.Parallel()

	parsed, err := LotteryABI()
	require.NoError(t, err)

	assert.Equal(t, parsed.Events["TicketsPurchased"].ID, TopicTicketsPurchased)
	assert.Equal(t, parsed.Events["TicketsPurchasedForRounds"].ID, TopicTicketsPurchasedForRounds)
	assert.Equal(t, parsed.Events["WinningsClaimed"].ID, TopicWinningsClaimed)
}
