// Package ws serves chat clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/alexiscuevases/ondesk/ingress/internal/config"
	"github.com/alexiscuevases/ondesk/ingress/internal/hub"
	"github.com/alexiscuevases/ondesk/ingress/internal/orchestrator"
	"github.com/alexiscuevases/ondesk/ingress/internal/protocol"
)

// Ingester hands customer messages to the engine.
type Ingester interface {
	IngestMessage(ctx context.Context, req *orchestrator.IngestMessageRequest) (*orchestrator.ReplyResult, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	engine   Ingester
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, engine Ingester, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		hub:    h,
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", "connection_id", conn.ID, "error", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("websocket write failed", "connection_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeUserMessage:
		s.handleUserMessage(conn, data)
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleHello binds the connection to the conversation named in the hello.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}
	conversationID := strings.TrimSpace(msg.ConversationID)
	if conversationID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "conversation_id is required")
		return
	}

	s.hub.Bind(conn, conversationID)

	s.hub.SendJSON(conn, protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:           protocol.TypeHelloAck,
			Ts:             time.Now().UnixMilli(),
			RequestID:      msg.RequestID,
			ConversationID: conversationID,
		},
	})

	s.logger.Info("hello completed", "connection_id", conn.ID, "conversation_id", conversationID)
}

// handleUserMessage forwards a customer message to the engine. The agent
// reply arrives separately through PushEvent; only the status is sent here.
func (s *Server) handleUserMessage(conn *hub.Connection, data []byte) {
	var msg protocol.UserMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid user_message")
		return
	}

	conversationID := s.hub.ConversationOf(conn)
	if conversationID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeHelloRequired, "must send hello first")
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "content is required")
		return
	}

	req := &orchestrator.IngestMessageRequest{
		ConversationID: conversationID,
		Content:        msg.Content,
	}

	// Generation can take a while; do not block the read loop.
	go func() {
		resp, err := s.engine.IngestMessage(context.Background(), req)
		if err != nil {
			s.logger.Warn("ingest message failed", "conversation_id", conversationID, "error", err)
			s.broadcastError(conversationID, msg.RequestID, protocol.ErrorCodeOrchestratorFail, err.Error())
			return
		}

		s.hub.BroadcastJSON(conversationID, protocol.ReplyStatusMessage{
			BaseMessage: protocol.BaseMessage{
				Type:           protocol.TypeReplyStatus,
				Ts:             time.Now().UnixMilli(),
				RequestID:      msg.RequestID,
				ConversationID: conversationID,
			},
			Success: resp.Success,
			Outcome: resp.Outcome,
			Closed:  resp.Closed,
			Error:   resp.Error,
		})
	}()
}

func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	s.hub.SendJSON(conn, protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
		Code:    code,
		Message: message,
	})
}

func (s *Server) broadcastError(conversationID, requestID, code, message string) {
	s.hub.BroadcastJSON(conversationID, protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:           protocol.TypeError,
			Ts:             time.Now().UnixMilli(),
			RequestID:      requestID,
			ConversationID: conversationID,
		},
		Code:    code,
		Message: message,
	})
}
