package domain

import "time"

// Conversation is a customer thread handled by an agent.
type Conversation struct {
	ID            string             `json:"id"`
	AgentID       string             `json:"agent_id,omitempty"`
	CustomerName  string             `json:"customer_name,omitempty"`
	CustomerEmail string             `json:"customer_email,omitempty"`
	CustomerPhone string             `json:"customer_phone,omitempty"`
	Channel       string             `json:"channel"`
	ExternalRef   string             `json:"external_ref,omitempty"` // channel address, e.g. slack channel id
	Priority      string             `json:"priority"`
	Status        ConversationStatus `json:"status"`
	ClosedAt      *time.Time         `json:"closed_at,omitempty"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`

	// Agent is populated by loaders that join the assigned agent.
	Agent *Agent `json:"agent,omitempty"`
}

// Message is a single stored turn of a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Role           MessageRole   `json:"role"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}
