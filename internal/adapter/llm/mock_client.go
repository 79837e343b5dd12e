package llm

import (
	"context"
	"fmt"
)

// MockClient is a canned Completer used when ONDESK_MODE=MOCK.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate echoes the latest user message.
func (m *MockClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The second pass of an action exchange ends with a system result entry.
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == RoleSystem && n > 1 {
		return "[MOCK] The requested action has been processed.", nil
	}

	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client.", nil
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100)), nil
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
