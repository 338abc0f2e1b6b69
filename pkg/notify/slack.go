package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// Slash command reply visibility.
const (
	ResponseEphemeral = "ephemeral"
	ResponseInChannel = "in_channel"
)

// Messenger posts text to a chat channel.
type Messenger interface {
	Post(ctx context.Context, channel string, text string) error
}

// Responder replies to a slash command through its response_url.
type Responder interface {
	Respond(ctx context.Context, responseURL string, text string, responseType string) error
}

// SlackMessenger posts with the bot token through chat.postMessage.
type SlackMessenger struct {
	client *slack.Client
}

var _ Messenger = (*SlackMessenger)(nil)

func NewSlackMessenger(token string, options ...slack.Option) *SlackMessenger {
	return &SlackMessenger{client: slack.New(token, options...)}
}

// Post sends a single message. Failures are returned and never retried.
func (s *SlackMessenger) Post(ctx context.Context, channel string, text string) error {
	_, ts, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post to %s: %w", channel, err)
	}

	logrus.WithFields(logrus.Fields{
		"channel": channel,
		"ts":      ts,
	}).Debug("Message posted")
	return nil
}

// WebhookResponder sends follow ups to slash command response URLs.
type WebhookResponder struct{}

var _ Responder = WebhookResponder{}

func (WebhookResponder) Respond(ctx context.Context, responseURL string, text string, responseType string) error {
	if responseURL == "" {
		return fmt.Errorf("no response url")
	}

	err := slack.PostWebhookContext(ctx, responseURL, &slack.WebhookMessage{
		Text:         text,
		ResponseType: responseType,
	})
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	return nil
}
