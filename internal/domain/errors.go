package domain

import "errors"

// Sentinel errors for the engine. Messages for configuration errors are the
// exact texts surfaced in GenerateResult.Error.
var (
	ErrConversationNotFound = errors.New("Conversation not found")
	ErrAgentNotAssigned     = errors.New("No agent assigned to conversation")
	ErrAgentInactive        = errors.New("Agent is not active")
	ErrEndpointNotFound     = errors.New("endpoint not found")
	ErrConversationBusy     = errors.New("conversation is busy")
	ErrVersionConflict      = errors.New("conversation was modified concurrently")
)
