package domain

// IngestMessageRequest carries an inbound customer message.
type IngestMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// GenerateRequest asks for a reply to a conversation.
type GenerateRequest struct {
	ConversationID string `json:"conversation_id"`
}

// TestEndpointRequest executes an endpoint outside of any conversation.
type TestEndpointRequest struct {
	Parameters Params `json:"parameters"`
}

// MessagesResponse lists stored conversation messages.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// ErrorResponse is the JSON body returned on request errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
