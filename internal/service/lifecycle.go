package service

import (
	"context"

	"github.com/alexiscuevases/ondesk/internal/directive"
	"github.com/alexiscuevases/ondesk/internal/domain"
)

// applyLifecycle strips the closing sentinel from text and, when it was
// present, closes the conversation. The sentinel is stripped even when the
// close fails. There is no guard against closing an already closed
// conversation.
func (s *Service) applyLifecycle(ctx context.Context, conv *domain.Conversation, text string) (string, bool) {
	if !directive.HasEndConversation(text) {
		return text, false
	}
	stripped := directive.StripEndConversation(text)

	if err := s.closeConversation(ctx, conv); err != nil {
		s.logger.Warn("failed to close conversation", "conversation_id", conv.ID, "error", err)
		s.emit(ctx, conv.ID, domain.EventTypeCloseFailed, domain.CloseFailedPayload{
			ExpectedVersion: conv.Version,
			Error:           err.Error(),
		})
		return stripped, false
	}
	return stripped, true
}

// closeConversation moves the conversation to closed if nobody changed it
// since it was loaded.
func (s *Service) closeConversation(ctx context.Context, conv *domain.Conversation) error {
	closedAt := s.now().UTC()
	if err := s.store.CloseConversation(ctx, conv.ID, conv.Version, closedAt); err != nil {
		return err
	}

	conv.Status = domain.ConversationStatusClosed
	conv.ClosedAt = &closedAt
	conv.Version++
	s.emit(ctx, conv.ID, domain.EventTypeConversationClosed, domain.ConversationClosedPayload{ClosedAt: closedAt.UnixMilli()})
	return nil
}
