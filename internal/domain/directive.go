package domain

// Directive is an action invocation extracted from model output.
type Directive struct {
	ActionID   string `json:"action_id"`
	Parameters Params `json:"parameters"`
}
