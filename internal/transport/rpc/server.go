// Package rpc exposes the engine over JSON-RPC for the message-ingestion flow.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/service"
)

// Server accepts JSON-RPC connections.
type Server struct {
	mu        sync.Mutex
	listener  net.Listener
	rpcServer *rpc.Server
	logger    *slog.Logger
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the service.
func NewServer(svc *service.Service, logger *slog.Logger) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName("Orchestrator", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
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

// Handler implements the Orchestrator RPC methods.
type Handler struct {
	service *service.Service
}

// GenerateResponse produces a reply without storing it. Generation failures
// are reported in the result, not as RPC errors.
func (h *Handler) GenerateResponse(req *domain.GenerateRequest, resp *domain.GenerateResult) error {
	if req == nil || req.ConversationID == "" {
		return errors.New("conversation_id is required")
	}

	*resp = h.service.GenerateResponse(context.Background(), req.ConversationID)
	return nil
}

// IngestMessage stores a customer message, then generates and delivers the
// reply.
func (h *Handler) IngestMessage(req *domain.IngestMessageRequest, resp *domain.ReplyResult) error {
	if req == nil || req.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	if req.Content == "" {
		return errors.New("content is required")
	}

	result, err := h.service.IngestUserMessage(context.Background(), req.ConversationID, req.Content)
	if err != nil {
		return err
	}
	*resp = *result
	return nil
}
