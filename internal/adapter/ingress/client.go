// Package ingress delivers agent replies to the chat transport over JSON-RPC.
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"time"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// Client pushes events to the ingress service.
type Client struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewClient creates an ingress client. An empty baseURL disables delivery.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		addr:        resolveRPCAddr(baseURL),
		dialTimeout: 5 * time.Second,
		callTimeout: 5 * time.Second,
		logger:      logger,
	}
}

// SendRequest represents the request body for event delivery.
type SendRequest struct {
	SessionID string                 `json:"session_id"`
	Event     map[string]interface{} `json:"event"`
}

// SendResponse represents the response for event delivery.
type SendResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

// Deliver pushes an agent message to the customer's session. The session is
// the conversation's external reference, or its id when none is stored.
func (c *Client) Deliver(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error {
	sessionID := conv.ExternalRef
	if sessionID == "" {
		sessionID = conv.ID
	}
	return c.PushEvent(ctx, sessionID, map[string]interface{}{
		"type":            "agent_message",
		"conversation_id": conv.ID,
		"message_id":      msg.ID,
		"role":            string(msg.Role),
		"content":         msg.Content,
		"ts":              msg.CreatedAt.UnixMilli(),
	})
}

// PushEvent sends one event to a session.
func (c *Client) PushEvent(ctx context.Context, sessionID string, event map[string]interface{}) error {
	if c.addr == "" {
		return nil
	}

	req := &SendRequest{
		SessionID: sessionID,
		Event:     event,
	}

	var resp SendResponse
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.call(ctx, "Ingress.PushEvent", req, &resp); err != nil {
		return fmt.Errorf("failed to push event to ingress: %w", err)
	}
	if !resp.OK {
		c.logger.Warn("ingress rpc returned ok=false", "session_id", sessionID, "delivered", resp.Delivered)
		return fmt.Errorf("ingress rpc returned ok=false")
	}

	return nil
}

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if c.callTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.callTimeout))
	}

	client := jsonrpc.NewClient(conn)
	call := client.Go(method, args, reply, nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func resolveRPCAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}
	return raw
}
