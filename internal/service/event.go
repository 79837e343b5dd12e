package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// recordEvent records an event to the store.
func (s *Service) recordEvent(ctx context.Context, conversationID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID:        "evt_" + uuid.New().String()[:8],
		ConversationID: conversationID,
		Ts:             time.Now().UnixMilli(),
		Type:           eventType,
		Payload:        payloadBytes,
	}

	return s.store.CreateEvent(ctx, event)
}

// emit records an event and only logs when that fails.
func (s *Service) emit(ctx context.Context, conversationID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, conversationID, eventType, payload); err != nil {
		s.logger.Warn("failed to record event", "type", eventType, "conversation_id", conversationID, "error", err)
	}
}

// GetEvents lists recorded events of a conversation.
func (s *Service) GetEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	events, err := s.store.GetEvents(ctx, conversationID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}
