package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackAdapter posts events to a Slack channel.
type SlackAdapter struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackAdapter.
type SlackOpts struct {
	BotToken string // xoxb-... bot token
	Channel  string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack adapter.
func NewSlack(opts SlackOpts) (*SlackAdapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &SlackAdapter{client: client, channel: opts.Channel}, nil
}

// Send posts the event as an attachment with a severity color bar.
func (a *SlackAdapter) Send(ctx context.Context, ev Event) error {
	attachment := slackapi.Attachment{
		Title: ev.Title,
		Text:  ev.Body,
		Color: severityColor(ev.Severity),
	}
	for _, f := range ev.Fields {
		attachment.Fields = append(attachment.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: true,
		})
	}
	_, _, err := a.client.PostMessageContext(ctx, a.channel,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

// Close is a no-op; the Slack web API client holds no connection.
func (a *SlackAdapter) Close() error {
	return nil
}
