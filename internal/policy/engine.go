// Package policy gates action execution with an OPA policy.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the action policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is what the policy sees for one action invocation.
type Input struct {
	EndpointID     string
	EndpointName   string
	Method         string
	AgentID        string
	ConversationID string
	Channel        string
	Parameters     map[string]interface{}
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Decision string
	Reason   string
}

// Allowed reports whether the action may run.
func (d Decision) Allowed() bool {
	return d.Decision != DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query     rego.PreparedEvalQuery
	blocklist []string
}

// NewEngine creates a new policy engine with the given policy content.
// Endpoint ids in blocklist are exposed to the policy as input.blocked_endpoints.
func NewEngine(ctx context.Context, policyContent string, blocklist []string) (*Engine, error) {
	r := rego.New(
		rego.Query("decision = data.action_policy.decision; reason = data.action_policy.reason"),
		rego.Module("action_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query, blocklist: blocklist}, nil
}

// NewEngineFromFile loads the policy module from path, or uses DefaultPolicy
// when path is empty.
func NewEngineFromFile(ctx context.Context, path string, blocklist []string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy, blocklist)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content), blocklist)
}

// Evaluate checks the action policy for in.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	blocked := make([]interface{}, 0, len(e.blocklist))
	for _, id := range e.blocklist {
		blocked = append(blocked, id)
	}
	params := in.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	input := map[string]interface{}{
		"endpoint_id":       in.EndpointID,
		"endpoint_name":     in.EndpointName,
		"method":            in.Method,
		"agent_id":          in.AgentID,
		"conversation_id":   in.ConversationID,
		"channel":           in.Channel,
		"parameters":        params,
		"blocked_endpoints": blocked,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// The policy is expected to define defaults for both rules.
	if len(results) == 0 {
		return Decision{Decision: DecisionAllow, Reason: "default"}, nil
	}

	d := Decision{Decision: DecisionAllow}
	if s, ok := results[0].Bindings["decision"].(string); ok {
		d.Decision = s
	}
	if s, ok := results[0].Bindings["reason"].(string); ok {
		d.Reason = s
	}
	return d, nil
}

// DefaultPolicy allows every action except blocklisted endpoints.
const DefaultPolicy = `
package action_policy

default decision = "allow"

default reason = ""

decision = "block" {
	input.endpoint_id == input.blocked_endpoints[_]
}

reason = "endpoint is blocklisted" {
	input.endpoint_id == input.blocked_endpoints[_]
}
`
