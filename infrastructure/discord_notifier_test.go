package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"lottoclaim/domain/events"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedSender struct {
	channel string
	embeds  []*discordgo.MessageEmbed
	err     error
}

func (f *fakeEmbedSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.channel = channelID
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{}, nil
}

func TestClaimRunEmbed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		run       events.ClaimRunCompletedEvent
		wantColor int
		wantField string
	}{
		{
			name:      "all confirmed",
			run:       events.ClaimRunCompletedEvent{RoundsRequested: 2, RoundsConfirmed: 2, Batches: 1},
			wantColor: colorSuccess,
		},
		{
			name:      "partial failure",
			run:       events.ClaimRunCompletedEvent{RoundsRequested: 3, RoundsConfirmed: 2, RoundsFailed: 1, Batches: 2},
			wantColor: colorWarning,
		},
		{
			name:      "uncertain outcome",
			run:       events.ClaimRunCompletedEvent{RoundsRequested: 3, RoundsConfirmed: 1, RoundsUncertain: 2, Batches: 2},
			wantColor: colorWarning,
			wantField: "Pending confirmation",
		},
		{
			name:      "nothing confirmed",
			run:       events.ClaimRunCompletedEvent{RoundsRequested: 3, RoundsFailed: 3, Batches: 1},
			wantColor: colorDanger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			embed := ClaimRunEmbed(tt.run)
			assert.Equal(t, tt.wantColor, embed.Color)
			if tt.wantField != "" {
				names := make([]string, 0, len(embed.Fields))
				for _, f := range embed.Fields {
					names = append(names, f.Name)
				}
				assert.Contains(t, names, tt.wantField)
			}
		})
	}
}

func TestClaimRunEmbed_TruncatesTransactions(t *testing.T) {
	t.Parallel()

	hashes := make([]string, 8)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("0x%064x", i)
	}
	embed := ClaimRunEmbed(events.ClaimRunCompletedEvent{RoundsConfirmed: 8, TxHashes: hashes, TotalConfirmed: big.NewInt(0)})

	last := embed.Fields[len(embed.Fields)-1]
	assert.Equal(t, "Transactions", last.Name)
	assert.Contains(t, last.Value, hashes[4])
	assert.NotContains(t, last.Value, hashes[5])
	assert.Contains(t, last.Value, "...and 3 more")
}

func TestDiscordNotifier_HandleClaimRunCompleted(t *testing.T) {
	t.Parallel()

	sender := &fakeEmbedSender{}
	notifier := NewDiscordNotifier(sender, "12345")

	err := notifier.HandleClaimRunCompleted(context.Background(), events.ClaimRunCompletedEvent{
		Summary:         "3 of 3 rounds claimed",
		RoundsConfirmed: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", sender.channel)
	require.Len(t, sender.embeds, 1)
	assert.Equal(t, "3 of 3 rounds claimed", sender.embeds[0].Description)

	assert.Error(t, notifier.HandleClaimRunCompleted(context.Background(), events.ReconciliationCompletedEvent{}))

	failing := NewDiscordNotifier(&fakeEmbedSender{err: errors.New("HTTP 403 Forbidden")}, "12345")
	assert.Error(t, failing.HandleClaimRunCompleted(context.Background(), events.ClaimRunCompletedEvent{}))
}
