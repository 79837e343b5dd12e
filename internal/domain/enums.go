// Package domain defines the core domain models for the agent engine.
package domain

// AgentStatus represents the lifecycle status of an agent.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusTraining AgentStatus = "training"
)

// ConversationStatus represents the status of a conversation.
type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "open"
	ConversationStatusClosed ConversationStatus = "closed"
)

// MessageRole is the author role of a stored message.
type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleAgent  MessageRole = "agent"
	MessageRoleSystem MessageRole = "system"
)

// MessageStatus represents the delivery status of a stored message.
type MessageStatus string

const (
	MessageStatusReceived MessageStatus = "received"
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusFailed   MessageStatus = "failed"
)

// HTTPMethod is the method of a stored endpoint.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodPatch  HTTPMethod = "PATCH"
	MethodDelete HTTPMethod = "DELETE"
)

// HasQueryPayload reports whether parameters travel in the query string.
func (m HTTPMethod) HasQueryPayload() bool {
	return m == MethodGet || m == MethodDelete
}

// Valid reports whether m is one of the supported methods.
func (m HTTPMethod) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// EventType represents the type of a recorded event.
type EventType string

const (
	EventTypeLLMCallDone        EventType = "llm_call_done"
	EventTypeDirectiveIgnored   EventType = "directive_ignored"
	EventTypeActionExecuted     EventType = "action_executed"
	EventTypeActionBlocked      EventType = "action_blocked"
	EventTypeConversationClosed EventType = "conversation_closed"
	EventTypeCloseFailed        EventType = "conversation_close_failed"
	EventTypeDeliveryFailed     EventType = "delivery_failed"
)

// Outcome describes which branch of the two-phase flow produced a reply.
type Outcome string

const (
	OutcomeAnswered         Outcome = "answered"
	OutcomeActionExecuted   Outcome = "action_executed"
	OutcomeDirectiveIgnored Outcome = "directive_ignored"
)
