package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// Reply generates the next agent message, stores it and delivers it on the
// conversation's channel. A failed generation is returned in the result with
// nothing stored. A failed delivery leaves the message marked failed.
func (s *Service) Reply(ctx context.Context, conversationID string) (*domain.ReplyResult, error) {
	gen := s.GenerateResponse(ctx, conversationID)
	out := &domain.ReplyResult{GenerateResult: gen}
	if !gen.Success {
		return out, nil
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
		Role:           domain.MessageRoleAgent,
		Content:        gen.Message,
		Status:         domain.MessageStatusSent,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	out.MessageID = msg.ID

	if err := s.deliver(ctx, conv, msg); err != nil {
		s.logger.Warn("failed to deliver reply", "conversation_id", conv.ID, "message_id", msg.ID, "channel", conv.Channel, "error", err)
		if uerr := s.store.UpdateMessageStatus(ctx, msg.ID, domain.MessageStatusFailed); uerr != nil {
			s.logger.Warn("failed to mark message failed", "message_id", msg.ID, "error", uerr)
		}
		s.emit(ctx, conv.ID, domain.EventTypeDeliveryFailed, domain.DeliveryFailedPayload{
			MessageID: msg.ID,
			Channel:   conv.Channel,
			Error:     err.Error(),
		})
		return out, nil
	}

	out.Delivered = true
	return out, nil
}

func (s *Service) deliver(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error {
	d := s.channels.lookup(conv.Channel)
	if d == nil {
		return fmt.Errorf("no deliverer for channel %q", conv.Channel)
	}
	return d.Deliver(ctx, conv, msg)
}
