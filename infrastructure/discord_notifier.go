package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	colorSuccess = 0x57F287
	colorWarning = 0xFEE75C
	colorDanger  = 0xED4245

	maxListedTxHashes = 5
)

// EmbedSender is the subset of discordgo.Session used to post notifications
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts claim run summaries to a Discord channel
type DiscordNotifier struct {
	session   EmbedSender
	channelID string
}

func NewDiscordNotifier(session EmbedSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{session: session, channelID: channelID}
}

// OpenDiscordSession creates and opens a bot session for token
func OpenDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}
	return session, nil
}

// HandleClaimRunCompleted is registered as a local handler for claim run events
func (n *DiscordNotifier) HandleClaimRunCompleted(ctx context.Context, event events.Event) error {
	run, ok := event.(events.ClaimRunCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, ClaimRunEmbed(run)); err != nil {
		return fmt.Errorf("failed to send claim run summary: %w", err)
	}
	log.WithFields(log.Fields{
		"player":  run.Player,
		"channel": n.channelID,
	}).Debug("Posted claim run summary to Discord")
	return nil
}

// ClaimRunEmbed builds the summary embed for a finished claim run
func ClaimRunEmbed(run events.ClaimRunCompletedEvent) *discordgo.MessageEmbed {
	color := colorSuccess
	switch {
	case run.RoundsConfirmed == 0:
		color = colorDanger
	case run.RoundsFailed > 0 || run.RoundsUncertain > 0:
		color = colorWarning
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Claimed",
			Value:  entities.FormatTokenAmount(run.TotalConfirmed),
			Inline: true,
		},
		{
			Name:   "Batches",
			Value:  fmt.Sprintf("%d", run.Batches),
			Inline: true,
		},
	}
	if run.RoundsUncertain > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Pending confirmation",
			Value:  fmt.Sprintf("%d rounds", run.RoundsUncertain),
			Inline: true,
		})
	}
	if len(run.TxHashes) > 0 {
		shown := run.TxHashes
		if len(shown) > maxListedTxHashes {
			shown = shown[:maxListedTxHashes]
		}
		value := strings.Join(shown, "\n")
		if extra := len(run.TxHashes) - len(shown); extra > 0 {
			value += fmt.Sprintf("\n...and %d more", extra)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Transactions",
			Value: value,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       "Lottery claim run",
		Color:       color,
		Description: run.Summary,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: run.Player},
	}
}
