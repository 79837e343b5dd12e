package domain

// ExecutionResult is the outcome of one endpoint execution.
type ExecutionResult struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	StatusCode int    `json:"status_code,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
}

// GenerateResult is the only output of a response generation.
type GenerateResult struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message,omitempty"`
	Error    string           `json:"error,omitempty"`
	Outcome  Outcome          `json:"outcome,omitempty"`
	ActionID string           `json:"action_id,omitempty"`
	Action   *ExecutionResult `json:"action,omitempty"`
	Closed   bool             `json:"conversation_closed,omitempty"`
}

// ReplyResult is returned once a generated reply has been stored and delivered.
type ReplyResult struct {
	GenerateResult
	MessageID string `json:"message_id,omitempty"`
	Delivered bool   `json:"delivered"`
}
