// Package protocol defines the WebSocket message protocol between chat
// clients and the gateway.
package protocol

// Message types from client to gateway
const (
	TypeHello       = "hello"
	TypeUserMessage = "user_message"
)

// Message types from gateway to client
const (
	TypeHelloAck     = "hello_ack"
	TypeAgentMessage = "agent_message"
	TypeReplyStatus  = "reply_status"
	TypeError        = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	RequestID      string `json:"request_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HelloMessage binds a connection to a conversation.
type HelloMessage struct {
	BaseMessage
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent by the gateway after a successful hello.
type HelloAckMessage struct {
	BaseMessage
}

// UserMessage carries one customer message.
type UserMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// AgentMessage is an agent reply pushed by the engine.
type AgentMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// ReplyStatusMessage reports how the engine handled a user message.
type ReplyStatusMessage struct {
	BaseMessage
	Success bool   `json:"success"`
	Outcome string `json:"outcome,omitempty"`
	Closed  bool   `json:"conversation_closed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorMessage is sent by the gateway when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeUnauthorized     = "unauthorized"
	ErrorCodeHelloRequired    = "hello_required"
	ErrorCodeOrchestratorFail = "orchestrator_fail"
)
