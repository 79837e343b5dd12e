package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexiscuevases/ondesk/internal/adapter/llm"
	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/infra/tracer"
)

// complete issues one completion call for the agent and records an
// llm_call_done event.
func (s *Service) complete(ctx context.Context, conversationID string, agent *domain.Agent, messages []llm.ChatMessage, pass int) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "service.complete",
		tracer.StringAttr("model", agent.Model),
		tracer.IntAttr("pass", pass))
	defer span.End()

	startTime := time.Now()
	text, err := s.completer.Generate(ctx, llm.GenerateRequest{
		Model:       agent.Model,
		Messages:    messages,
		MaxTokens:   agent.MaxTokens,
		Temperature: agent.Temperature,
	})
	latencyMs := time.Since(startTime).Milliseconds()

	payload := domain.LLMCallDonePayload{
		Pass:      pass,
		Model:     agent.Model,
		LatencyMs: latencyMs,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.emit(ctx, conversationID, domain.EventTypeLLMCallDone, payload)

	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	tracer.SetOK(span)
	return text, nil
}
