// Package rpc exposes the gateway's JSON-RPC endpoint the engine pushes
// replies to.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"github.com/alexiscuevases/ondesk/ingress/internal/hub"
)

// Server exposes gateway RPC endpoints.
type Server struct {
	mu        sync.Mutex
	listener  net.Listener
	rpcServer *rpc.Server
	logger    *slog.Logger
	done      chan struct{}
}

// NewServer creates a new gateway RPC server.
func NewServer(h *hub.Hub, logger *slog.Logger) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{hub: h, logger: logger}
	if err := rpcServer.RegisterName("Ingress", handler); err != nil {
		return nil, err
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.logger.Warn("rpc accept error", "error", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	if err := ln.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements gateway RPC methods.
type Handler struct {
	hub    *hub.Hub
	logger *slog.Logger
}

// SendRequest is one event for the connections of a session. The session id
// is the conversation's external reference or its id.
type SendRequest struct {
	SessionID string                 `json:"session_id"`
	Event     map[string]interface{} `json:"event"`
}

// SendResponse reports whether any connection was listening.
type SendResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

// PushEvent forwards an engine event to WebSocket clients.
func (h *Handler) PushEvent(req *SendRequest, resp *SendResponse) error {
	if req == nil {
		return errors.New("send request is required")
	}
	if req.SessionID == "" {
		return errors.New("session_id is required")
	}
	if req.Event == nil {
		return errors.New("event is required")
	}

	if _, ok := req.Event["ts"]; !ok {
		req.Event["ts"] = time.Now().UnixMilli()
	}

	delivered := h.hub.HasListeners(req.SessionID)
	if err := h.hub.BroadcastJSON(req.SessionID, req.Event); err != nil {
		return err
	}

	h.logger.Info("event pushed", "session_id", req.SessionID, "type", req.Event["type"], "delivered", delivered)

	resp.OK = true
	resp.Delivered = delivered
	return nil
}
