package domain

import "time"

// Agent is the configured persona answering a conversation.
type Agent struct {
	ID           string      `json:"id"`
	TeamID       string      `json:"team_id,omitempty"`
	Name         string      `json:"name"`
	SystemPrompt string      `json:"system_prompt"`
	Model        string      `json:"model"`
	Temperature  float64     `json:"temperature"`
	MaxTokens    int         `json:"max_tokens"`
	Status       AgentStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsActive reports whether the agent may answer conversations.
func (a *Agent) IsActive() bool {
	return a != nil && a.Status == AgentStatusActive
}

// ParamSpec describes one entry of an endpoint's parameter schema.
type ParamSpec struct {
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Endpoint is a stored HTTP action an agent may invoke mid-conversation.
type Endpoint struct {
	ID             string               `json:"id"`
	AgentID        string               `json:"agent_id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Method         HTTPMethod           `json:"method"`
	URL            string               `json:"url"`
	HeadersSchema  map[string]string    `json:"headers_schema,omitempty"`
	ParamsSchema   map[string]ParamSpec `json:"params_schema,omitempty"`
	ResponseSchema map[string]any       `json:"response_schema,omitempty"`
	TimeoutMs      int                  `json:"timeout"`
	RetryCount     int                  `json:"retry_count"`
	IsActive       bool                 `json:"is_active"`
	CreatedAt      time.Time            `json:"created_at"`
}
