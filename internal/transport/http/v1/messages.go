package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// GetMessages retrieves messages for a conversation.
// GET /v1/conversations/:conversation_id/messages
func (h *Handler) GetMessages(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	before := c.QueryParam("before")

	ctx := c.Request().Context()

	// One extra row tells whether more messages exist.
	messages, err := h.service.GetMessages(ctx, conversationID, limit+1, before)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return c.JSON(http.StatusOK, domain.MessagesResponse{
		Messages: messages,
		HasMore:  hasMore,
	})
}

// GetEvents retrieves recorded events for a conversation.
// GET /v1/conversations/:conversation_id/events
func (h *Handler) GetEvents(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var types []string
	if t := c.QueryParam("types"); t != "" {
		for _, v := range strings.Split(t, ",") {
			if v = strings.TrimSpace(v); v != "" {
				types = append(types, v)
			}
		}
	}

	ctx := c.Request().Context()

	events, err := h.service.GetEvents(ctx, conversationID, afterTs, types, limit)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if events == nil {
		events = []domain.Event{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
