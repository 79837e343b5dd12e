package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// CreateAgent stores a new agent. Missing ids and defaults are filled in.
func (s *Service) CreateAgent(ctx context.Context, agent *domain.Agent) (*domain.Agent, error) {
	if agent.ID == "" {
		agent.ID = "agt_" + uuid.New().String()[:8]
	}
	if agent.Status == "" {
		agent.Status = domain.AgentStatusActive
	}
	if agent.MaxTokens == 0 {
		agent.MaxTokens = 1000
	}
	agent.CreatedAt = time.Now().UTC()

	if err := s.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return agent, nil
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// CreateEndpoint stores a new action definition for an existing agent.
func (s *Service) CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) (*domain.Endpoint, error) {
	if !endpoint.Method.Valid() {
		return nil, fmt.Errorf("unsupported method %q", endpoint.Method)
	}
	agent, err := s.GetAgent(ctx, endpoint.AgentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s not found", endpoint.AgentID)
	}
	if endpoint.ID == "" {
		endpoint.ID = "ep_" + uuid.New().String()[:8]
	}
	endpoint.CreatedAt = time.Now().UTC()

	if err := s.store.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("failed to create endpoint: %w", err)
	}
	return endpoint, nil
}

// CreateConversation opens a conversation.
func (s *Service) CreateConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.Channel == "" {
		conv.Channel = "web"
	}
	if conv.Priority == "" {
		conv.Priority = "medium"
	}
	conv.Status = domain.ConversationStatusOpen
	conv.ClosedAt = nil
	conv.Version = 0
	conv.CreatedAt = time.Now().UTC()

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}
