// Package http provides the gateway's internal HTTP server.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/alexiscuevases/ondesk/ingress/internal/hub"
)

// Server is the internal HTTP server for ingress.
type Server struct {
	echo   *echo.Echo
	hub    *hub.Hub
	logger *slog.Logger
}

// NewServer creates a new internal HTTP server.
func NewServer(h *hub.Hub, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		hub:    h,
		logger: logger,
	}

	// Register routes
	e.GET("/health", s.handleHealth)
	e.POST("/internal/send", s.handleInternalSend)

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections":   s.hub.ConnectionCount(),
		"conversations": s.hub.ConversationCount(),
	})
}

// SendRequest represents the request body for POST /internal/send.
type SendRequest struct {
	SessionID string                 `json:"session_id"`
	Event     map[string]interface{} `json:"event"`
}

// SendResponse represents the response for POST /internal/send.
type SendResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

// handleInternalSend forwards an event to WebSocket clients. It mirrors the
// Ingress.PushEvent RPC for callers that only speak HTTP.
func (s *Server) handleInternalSend(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	if req.Event == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "event is required"})
	}

	// Add timestamp if not present
	if _, ok := req.Event["ts"]; !ok {
		req.Event["ts"] = time.Now().UnixMilli()
	}

	// Check if there are active connections
	hasConnections := s.hub.HasListeners(req.SessionID)

	// Broadcast event to session
	if err := s.hub.BroadcastJSON(req.SessionID, req.Event); err != nil {
		s.logger.Warn("failed to broadcast event", "session_id", req.SessionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to broadcast event"})
	}

	s.logger.Info("event sent", "session_id", req.SessionID, "type", req.Event["type"], "delivered", hasConnections)

	return c.JSON(http.StatusOK, SendResponse{
		OK:        true,
		Delivered: hasConnections,
	})
}
