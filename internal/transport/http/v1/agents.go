package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// CreateAgent stores a new agent.
// POST /v1/agents
func (h *Handler) CreateAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.Agent
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return errorJSON(c, http.StatusBadRequest, "name is required")
	}
	if req.Model == "" {
		return errorJSON(c, http.StatusBadRequest, "model is required")
	}

	agent, err := h.service.CreateAgent(ctx, &req)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, agent)
}

// GetAgent gets a specific agent by ID.
// GET /v1/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	agent, err := h.service.GetAgent(ctx, agentID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if agent == nil {
		return errorJSON(c, http.StatusNotFound, "agent not found")
	}

	return c.JSON(http.StatusOK, agent)
}

// CreateEndpoint stores a new action for an agent.
// POST /v1/endpoints
func (h *Handler) CreateEndpoint(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.Endpoint
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	req.Method = domain.HTTPMethod(strings.ToUpper(string(req.Method)))
	switch {
	case req.AgentID == "":
		return errorJSON(c, http.StatusBadRequest, "agent_id is required")
	case req.Name == "":
		return errorJSON(c, http.StatusBadRequest, "name is required")
	case req.URL == "":
		return errorJSON(c, http.StatusBadRequest, "url is required")
	case !req.Method.Valid():
		return errorJSON(c, http.StatusBadRequest, "method must be one of GET, POST, PUT, PATCH, DELETE")
	}

	ep, err := h.service.CreateEndpoint(ctx, &req)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, ep)
}

// TestEndpoint executes an endpoint outside any conversation.
// POST /v1/endpoints/:endpoint_id/test
func (h *Handler) TestEndpoint(c echo.Context) error {
	ctx := c.Request().Context()
	endpointID := c.Param("endpoint_id")

	var req domain.TestEndpointRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.TestEndpoint(ctx, endpointID, req.Parameters)
	if errors.Is(err, domain.ErrEndpointNotFound) {
		return errorJSON(c, http.StatusNotFound, "endpoint not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
