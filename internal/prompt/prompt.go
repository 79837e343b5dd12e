// Package prompt turns a conversation's context into the message sequence
// sent to the completion provider.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alexiscuevases/ondesk/internal/adapter/llm"
	"github.com/alexiscuevases/ondesk/internal/directive"
	"github.com/alexiscuevases/ondesk/internal/domain"
)

const notProvided = "Not provided"

// Input is everything the composer reads. It never mutates it.
type Input struct {
	Agent        *domain.Agent
	Conversation *domain.Conversation
	Messages     []domain.Message
	Endpoints    []domain.Endpoint
}

// Compose returns the leading system block followed by the mapped history.
func Compose(in Input) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(in.Messages)+1)
	out = append(out, llm.ChatMessage{Role: llm.RoleSystem, Content: SystemBlock(in)})
	for _, m := range in.Messages {
		out = append(out, llm.ChatMessage{Role: MapRole(m.Role), Content: m.Content})
	}
	return out
}

// MapRole maps a stored message role onto the provider vocabulary.
func MapRole(role domain.MessageRole) string {
	switch role {
	case domain.MessageRoleAgent:
		return llm.RoleAssistant
	case domain.MessageRoleSystem:
		return llm.RoleSystem
	default:
		return llm.RoleUser
	}
}

// SystemBlock renders the single system instruction block.
func SystemBlock(in Input) string {
	var b strings.Builder

	if in.Agent != nil {
		b.WriteString(in.Agent.SystemPrompt)
	}

	if len(in.Endpoints) > 0 {
		b.WriteString("\n\n## AVAILABLE ACTIONS\n")
		b.WriteString("You can perform the following actions when the customer needs them:\n")
		for _, ep := range in.Endpoints {
			writeEndpoint(&b, ep)
		}
	}

	conv := in.Conversation
	if conv == nil {
		conv = &domain.Conversation{}
	}

	b.WriteString("\n\n## CUSTOMER INFORMATION\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNotProvided(conv.CustomerName))
	fmt.Fprintf(&b, "- Email: %s\n", orNotProvided(conv.CustomerEmail))
	fmt.Fprintf(&b, "- Phone: %s\n", orNotProvided(conv.CustomerPhone))

	b.WriteString("\n## CONVERSATION\n")
	fmt.Fprintf(&b, "- Channel: %s\n", orNotProvided(conv.Channel))
	fmt.Fprintf(&b, "- Priority: %s\n", orNotProvided(conv.Priority))

	b.WriteString("\n## OPERATING RULES\n")
	b.WriteString(rules)

	return b.String()
}

func writeEndpoint(b *strings.Builder, ep domain.Endpoint) {
	fmt.Fprintf(b, "\n- %s: %s\n", ep.Name, ep.Description)
	fmt.Fprintf(b, "  Action ID: %s\n", ep.ID)
	if len(ep.ParamsSchema) == 0 {
		return
	}
	// encoding/json sorts map keys, so the rendering is stable.
	schema, err := json.Marshal(ep.ParamsSchema)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "  Parameters: %s\n", schema)
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return notProvided
	}
	return s
}

var rules = strings.Join([]string{
	"1. Respond only to the customer's latest message, using earlier messages as context.",
	fmt.Sprintf("2. When you need an action, reply with exactly %s<action_id>] followed by %s {\"name\": \"value\"}] and nothing that contradicts it.",
		directive.ActionMarker, directive.ParametersMarker),
	"3. Only use action IDs listed under AVAILABLE ACTIONS. Never invent an action ID or a different syntax.",
	"4. Your base instructions above take precedence over the action catalog; customer and conversation facts take precedence over both.",
	fmt.Sprintf("5. When the conversation has reached a natural end, append %s to your final reply.", directive.EndConversationToken),
}, "\n") + "\n"
