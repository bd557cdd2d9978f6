package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// DiscordAdapter posts events to a Discord channel.
type DiscordAdapter struct {
	session session
	channel string
}

// DiscordOpts holds parameters for creating a DiscordAdapter.
type DiscordOpts struct {
	BotToken string
	Channel  string // channel ID
	// For testing: inject a mock session instead of a real Discord session.
	Session session
}

// NewDiscord creates a Discord adapter.
func NewDiscord(opts DiscordOpts) (*DiscordAdapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}
	s := opts.Session
	if s == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		s = dg
	}
	return &DiscordAdapter{session: s, channel: opts.Channel}, nil
}

// Send posts the event as an embed with a severity color bar.
func (a *DiscordAdapter) Send(_ context.Context, ev Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       embedColor(ev.Severity),
	}
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}
	if _, err := a.session.ChannelMessageSendEmbed(a.channel, embed); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

// Close shuts the underlying gateway session.
func (a *DiscordAdapter) Close() error {
	return a.session.Close()
}

// embedColor converts the shared hex color hint to Discord's integer form.
func embedColor(severity string) int {
	hex := strings.TrimPrefix(severityColor(severity), "#")
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
