// Package v1 provides the version 1 HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Conversation API
	e.POST("/v1/conversations", h.CreateConversation)
	e.GET("/v1/conversations/:conversation_id", h.GetConversation)
	e.POST("/v1/conversations/:conversation_id/respond", h.Respond)
	e.POST("/v1/conversations/:conversation_id/messages", h.PostMessage)
	e.GET("/v1/conversations/:conversation_id/messages", h.GetMessages)
	e.GET("/v1/conversations/:conversation_id/events", h.GetEvents)

	// Agent and action admin API
	e.POST("/v1/agents", h.CreateAgent)
	e.GET("/v1/agents/:agent_id", h.GetAgent)
	e.POST("/v1/endpoints", h.CreateEndpoint)
	e.POST("/v1/endpoints/:endpoint_id/test", h.TestEndpoint)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, domain.ErrorResponse{Error: msg})
}
