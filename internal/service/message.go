package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// GetMessages lists stored messages of a conversation, oldest first.
func (s *Service) GetMessages(ctx context.Context, conversationID string, limit int, before string) ([]domain.Message, error) {
	messages, err := s.store.GetMessages(ctx, conversationID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// IngestUserMessage stores a customer message and answers it.
func (s *Service) IngestUserMessage(ctx context.Context, conversationID, content string) (*domain.ReplyResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleUser,
		Content:        content,
		Status:         domain.MessageStatusReceived,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return s.Reply(ctx, conv.ID)
}
