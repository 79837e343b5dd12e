// Package store defines the storage interface and its SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Agent operations
	CreateAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)

	// Endpoint operations
	CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error
	GetEndpoint(ctx context.Context, endpointID string) (*domain.Endpoint, error)
	ListActiveEndpoints(ctx context.Context, agentID string) ([]domain.Endpoint, error)

	// Conversation operations
	CreateConversation(ctx context.Context, conversation *domain.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	GetConversationWithAgent(ctx context.Context, conversationID string) (*domain.Conversation, error)
	CloseConversation(ctx context.Context, conversationID string, expectedVersion int64, closedAt time.Time) error

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, conversationID string, limit int, before string) ([]domain.Message, error)
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) error

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Action invocation operations
	CreateActionInvocation(ctx context.Context, invocation *domain.ActionInvocation) error
	ListActionInvocations(ctx context.Context, conversationID string) ([]domain.ActionInvocation, error)

	// Lifecycle
	Close() error
}
