// Package llm provides an abstraction for LLM completion providers.
package llm

import (
	"context"
	"errors"
)

// ErrNoChoices is returned when the provider answers without any choice.
var ErrNoChoices = errors.New("completion returned no choices")

// Roles of the completion provider's message vocabulary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateRequest is a single non-streaming completion request.
type GenerateRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// Completer generates the text of one completion.
type Completer interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Ensure implementations satisfy Completer.
var (
	_ Completer = (*Client)(nil)
	_ Completer = (*MockClient)(nil)
	_ Completer = (*CircuitBreakerClient)(nil)
	_ Completer = (*RateLimitedClient)(nil)
)
