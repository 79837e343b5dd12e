package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// CreateConversation opens a conversation.
// POST /v1/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.Conversation
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.AgentID != "" {
		agent, err := h.service.GetAgent(ctx, req.AgentID)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, err.Error())
		}
		if agent == nil {
			return errorJSON(c, http.StatusBadRequest, "agent not found")
		}
	}

	conv, err := h.service.CreateConversation(ctx, &req)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, conv)
}

// GetConversation gets a conversation by ID.
// GET /v1/conversations/:conversation_id
func (h *Handler) GetConversation(c echo.Context) error {
	ctx := c.Request().Context()

	conv, err := h.service.GetConversation(ctx, c.Param("conversation_id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if conv == nil {
		return errorJSON(c, http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, conv)
}

// Respond generates the agent's next reply without storing it. Failures are
// reported in the body with status 200.
// POST /v1/conversations/:conversation_id/respond
func (h *Handler) Respond(c echo.Context) error {
	ctx := c.Request().Context()

	result := h.service.GenerateResponse(ctx, c.Param("conversation_id"))
	return c.JSON(http.StatusOK, result)
}

// PostMessage stores a customer message and replies to it.
// POST /v1/conversations/:conversation_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.IngestMessageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return errorJSON(c, http.StatusBadRequest, "content is required")
	}

	result, err := h.service.IngestUserMessage(ctx, c.Param("conversation_id"), req.Content)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return errorJSON(c, http.StatusNotFound, "conversation not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
