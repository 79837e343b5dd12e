package service

import (
	"context"
	"errors"

	"github.com/alexiscuevases/ondesk/internal/adapter/llm"
	"github.com/alexiscuevases/ondesk/internal/adapter/lock"
	"github.com/alexiscuevases/ondesk/internal/directive"
	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/infra/tracer"
	"github.com/alexiscuevases/ondesk/internal/prompt"
)

const generateFallbackError = "Failed to generate response"

// GenerateResponse produces the agent's next reply for a conversation. It
// never returns an error: every failure, including a panic, is reported in
// the result.
func (s *Service) GenerateResponse(ctx context.Context, conversationID string) (result domain.GenerateResult) {
	ctx, span := tracer.StartSpan(ctx, "service.generate_response", tracer.StringAttr("conversation_id", conversationID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during response generation", "conversation_id", conversationID, "panic", r)
			result = domain.GenerateResult{Success: false, Error: generateFallbackError}
		}
		if result.Success {
			tracer.SetOK(span)
		} else {
			tracer.RecordError(span, errors.New(result.Error))
		}
	}()

	release, err := lock.Wait(ctx, s.locker, conversationID, s.config.LockWait)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			err = domain.ErrConversationBusy
		}
		return failure(err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release conversation lock", "conversation_id", conversationID, "error", err)
		}
	}()

	res, err := s.generate(ctx, conversationID)
	if err != nil {
		s.logger.Warn("response generation failed", "conversation_id", conversationID, "error", err)
		return failure(err)
	}
	return *res
}

func failure(err error) domain.GenerateResult {
	msg := generateFallbackError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return domain.GenerateResult{Success: false, Error: msg}
}

// generate runs load, first pass, optional action and second pass, then the
// lifecycle check on whichever text is final.
func (s *Service) generate(ctx context.Context, conversationID string) (*domain.GenerateResult, error) {
	conv, err := s.store.GetConversationWithAgent(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}
	if conv.AgentID == "" || conv.Agent == nil {
		return nil, domain.ErrAgentNotAssigned
	}
	agent := conv.Agent
	if !agent.IsActive() {
		return nil, domain.ErrAgentInactive
	}

	history, err := s.store.GetRecentMessages(ctx, conv.ID, s.historyLimit())
	if err != nil {
		return nil, err
	}
	endpoints, err := s.store.ListActiveEndpoints(ctx, agent.ID)
	if err != nil {
		return nil, err
	}

	messages := prompt.Compose(prompt.Input{
		Agent:        agent,
		Conversation: conv,
		Messages:     history,
		Endpoints:    endpoints,
	})

	initial, err := s.complete(ctx, conv.ID, agent, messages, 1)
	if err != nil {
		return nil, err
	}

	result := &domain.GenerateResult{Success: true, Outcome: domain.OutcomeAnswered}
	final := initial

	if d := directive.Parse(initial); d != nil {
		result.ActionID = d.ActionID
		ep := findEndpoint(endpoints, d.ActionID)
		s.logger.Debug("directive detected",
			"conversation_id", conv.ID,
			"action_id", d.ActionID,
			"draft", directive.StripMarkers(initial),
		)
		if ep == nil {
			result.Outcome = domain.OutcomeDirectiveIgnored
			s.logger.Warn("directive ignored: unknown or inactive action",
				"conversation_id", conv.ID,
				"action_id", d.ActionID,
			)
			s.emit(ctx, conv.ID, domain.EventTypeDirectiveIgnored, domain.DirectiveIgnoredPayload{
				ActionID: d.ActionID,
				Reason:   "no active endpoint with this id",
			})
		} else {
			exec, err := s.runAction(ctx, conv, ep, d.Parameters)
			if err != nil {
				return nil, err
			}

			extended := make([]llm.ChatMessage, 0, len(messages)+2)
			extended = append(extended, messages...)
			extended = append(extended,
				llm.ChatMessage{Role: llm.RoleAssistant, Content: initial},
				llm.ChatMessage{Role: llm.RoleSystem, Content: actionSummary(ep, exec)},
			)

			final, err = s.complete(ctx, conv.ID, agent, extended, 2)
			if err != nil {
				return nil, err
			}
			result.Outcome = domain.OutcomeActionExecuted
			result.Action = exec
		}
	}

	result.Message, result.Closed = s.applyLifecycle(ctx, conv, final)
	return result, nil
}

func findEndpoint(endpoints []domain.Endpoint, id string) *domain.Endpoint {
	for i := range endpoints {
		if endpoints[i].ID == id {
			return &endpoints[i]
		}
	}
	return nil
}
