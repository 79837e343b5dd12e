// Package slack delivers agent replies to Slack conversations.
package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// Client posts messages with a bot token.
type Client struct {
	api *slack.Client
}

// NewClient creates a Slack client. apiURL overrides the Web API base URL
// and may be empty.
func NewClient(botToken, apiURL string) *Client {
	var opts []slack.Option
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Client{api: slack.New(botToken, opts...)}
}

// Deliver posts msg to the conversation's Slack channel. ExternalRef holds
// "<channel>" or "<channel>:<thread_ts>".
func (c *Client) Deliver(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error {
	channelID, threadTS := splitRef(conv.ExternalRef)
	if channelID == "" {
		return errors.New("conversation has no slack channel reference")
	}

	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

func splitRef(ref string) (channelID, threadTS string) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
