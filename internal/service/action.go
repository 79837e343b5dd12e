package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/policy"
)

// runAction gates an action through the policy, executes it and records the
// invocation. Only an endpoint lookup failure is returned as an error.
func (s *Service) runAction(ctx context.Context, conv *domain.Conversation, ep *domain.Endpoint, params domain.Params) (*domain.ExecutionResult, error) {
	if params == nil {
		params = domain.Params{}
	}

	if blocked := s.checkPolicy(ctx, conv, ep, params); blocked != nil {
		s.recordInvocation(ctx, conv.ID, ep.ID, params, blocked)
		return blocked, nil
	}

	result, err := s.executor.Execute(ctx, ep.ID, params)
	if err != nil {
		return nil, err
	}

	s.recordInvocation(ctx, conv.ID, ep.ID, params, result)
	s.emit(ctx, conv.ID, domain.EventTypeActionExecuted, domain.ActionExecutedPayload{
		EndpointID: ep.ID,
		Success:    result.Success,
		DurationMs: result.DurationMs,
		Error:      result.Error,
	})
	return result, nil
}

// checkPolicy returns a failed result when the action must not run.
func (s *Service) checkPolicy(ctx context.Context, conv *domain.Conversation, ep *domain.Endpoint, params domain.Params) *domain.ExecutionResult {
	if s.policy == nil {
		return nil
	}

	decision, err := s.policy.Evaluate(ctx, policy.Input{
		EndpointID:     ep.ID,
		EndpointName:   ep.Name,
		Method:         string(ep.Method),
		AgentID:        ep.AgentID,
		ConversationID: conv.ID,
		Channel:        conv.Channel,
		Parameters:     params.Values(),
	})
	reason := decision.Reason
	if err != nil {
		reason = err.Error()
	} else if decision.Allowed() {
		return nil
	}

	s.logger.Warn("action blocked by policy", "conversation_id", conv.ID, "endpoint_id", ep.ID, "reason", reason)
	s.emit(ctx, conv.ID, domain.EventTypeActionBlocked, domain.ActionBlockedPayload{
		EndpointID: ep.ID,
		Reason:     reason,
	})
	return &domain.ExecutionResult{Success: false, Error: "blocked by policy: " + reason}
}

func (s *Service) recordInvocation(ctx context.Context, conversationID, endpointID string, params domain.Params, result *domain.ExecutionResult) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		paramsJSON = []byte(`{}`)
	}
	attempts := result.Attempts
	inv := &domain.ActionInvocation{
		InvocationID:   "act_" + uuid.New().String()[:8],
		ConversationID: conversationID,
		EndpointID:     endpointID,
		Parameters:     paramsJSON,
		Success:        result.Success,
		StatusCode:     result.StatusCode,
		Error:          result.Error,
		DurationMs:     result.DurationMs,
		Attempts:       attempts,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateActionInvocation(ctx, inv); err != nil {
		s.logger.Warn("failed to record action invocation", "conversation_id", conversationID, "endpoint_id", endpointID, "error", err)
	}
}

// actionSummary is the system entry fed to the second completion pass.
func actionSummary(ep *domain.Endpoint, result *domain.ExecutionResult) string {
	if result.Success {
		data, err := json.Marshal(result.Data)
		if err != nil || string(data) == "null" {
			data = []byte("{}")
		}
		return fmt.Sprintf("Action %q completed successfully in %dms. Result: %s\n\n"+
			"Answer the customer's last message naturally using this result. Do not repeat the raw result format.",
			ep.Name, result.DurationMs, data)
	}
	return fmt.Sprintf("Action %q failed after %dms. Error: %s\n\n"+
		"Explain the problem to the customer naturally and offer a next step. Do not repeat the raw error format.",
		ep.Name, result.DurationMs, result.Error)
}

// TestEndpoint executes a stored endpoint outside any conversation.
func (s *Service) TestEndpoint(ctx context.Context, endpointID string, params domain.Params) (*domain.ExecutionResult, error) {
	if params == nil {
		params = domain.Params{}
	}
	return s.executor.Execute(ctx, endpointID, params)
}
