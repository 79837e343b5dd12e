package domain

import (
	"encoding/json"
	"time"
)

// Event is an observable record of something the engine did for a conversation.
type Event struct {
	EventID        string          `json:"event_id"`
	ConversationID string          `json:"conversation_id"`
	Ts             int64           `json:"ts"` // Unix milliseconds
	Type           EventType       `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// ActionInvocation is the stored audit row of one executed action.
type ActionInvocation struct {
	InvocationID   string          `json:"invocation_id"`
	ConversationID string          `json:"conversation_id"`
	EndpointID     string          `json:"endpoint_id"`
	Parameters     json.RawMessage `json:"parameters"`
	Success        bool            `json:"success"`
	StatusCode     int             `json:"status_code,omitempty"`
	Error          string          `json:"error,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LLMCallDonePayload is the payload for llm_call_done events.
type LLMCallDonePayload struct {
	Pass      int    `json:"pass"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// DirectiveIgnoredPayload is the payload for directive_ignored events.
type DirectiveIgnoredPayload struct {
	ActionID string `json:"action_id"`
	Reason   string `json:"reason"`
}

// ActionExecutedPayload is the payload for action_executed events.
type ActionExecutedPayload struct {
	EndpointID string `json:"endpoint_id"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ActionBlockedPayload is the payload for action_blocked events.
type ActionBlockedPayload struct {
	EndpointID string `json:"endpoint_id"`
	Reason     string `json:"reason"`
}

// ConversationClosedPayload is the payload for conversation_closed events.
type ConversationClosedPayload struct {
	ClosedAt int64 `json:"closed_at"`
}

// CloseFailedPayload is the payload for conversation_close_failed events.
type CloseFailedPayload struct {
	ExpectedVersion int64  `json:"expected_version"`
	Error           string `json:"error"`
}

// DeliveryFailedPayload is the payload for delivery_failed events.
type DeliveryFailedPayload struct {
	MessageID string `json:"message_id"`
	Channel   string `json:"channel"`
	Error     string `json:"error"`
}
