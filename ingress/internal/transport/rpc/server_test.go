package rpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/rpc/jsonrpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexiscuevases/ondesk/ingress/internal/hub"
)

func TestPushEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.NewHub(logger)
	go h.Run()
	defer h.Stop()

	conn := h.NewConnection(nil)
	h.Register(conn)
	h.Bind(conn, "conv-1")

	srv, err := NewServer(h, logger)
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	client, err := jsonrpc.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var resp SendResponse
	err = client.Call("Ingress.PushEvent", &SendRequest{
		SessionID: "conv-1",
		Event:     map[string]interface{}{"type": "agent_message", "content": "hi"},
	}, &resp)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.True(t, resp.Delivered)

	select {
	case data := <-conn.Send:
		assert.Contains(t, string(data), `"content":"hi"`)
		assert.Contains(t, string(data), `"ts":`)
	case <-time.After(time.Second):
		t.Fatal("event not broadcast")
	}

	var nobody SendResponse
	err = client.Call("Ingress.PushEvent", &SendRequest{
		SessionID: "conv-2",
		Event:     map[string]interface{}{"type": "agent_message"},
	}, &nobody)
	require.NoError(t, err)
	assert.False(t, nobody.Delivered)

	err = client.Call("Ingress.PushEvent", &SendRequest{Event: map[string]interface{}{}}, &nobody)
	assert.EqualError(t, err, "session_id is required")
}
