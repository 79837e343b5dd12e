// Package orchestrator is a JSON-RPC client for the engine's Orchestrator
// service.
package orchestrator

import (
	"context"
	"net"
	"net/rpc/jsonrpc"
	"time"
)

// Client calls the engine over JSON-RPC, one connection per call.
type Client struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
}

// NewClient creates a client for the engine at addr (host:port).
func NewClient(addr string, callTimeout time.Duration) *Client {
	return &Client{
		addr:        addr,
		dialTimeout: 5 * time.Second,
		callTimeout: callTimeout,
	}
}

// IngestMessageRequest carries one customer message.
type IngestMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// ReplyResult is the engine's answer to an ingested message. The reply text
// itself reaches the conversation through PushEvent.
type ReplyResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	ActionID  string `json:"action_id,omitempty"`
	Closed    bool   `json:"conversation_closed,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Delivered bool   `json:"delivered"`
}

// IngestMessage hands a customer message to the engine and waits for the
// reply to be generated.
func (c *Client) IngestMessage(ctx context.Context, req *IngestMessageRequest) (*ReplyResult, error) {
	var resp ReplyResult
	if err := c.call(ctx, "Orchestrator.IngestMessage", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
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
