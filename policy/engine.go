// Package policy evaluates the message admission policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values produced by the policy.
const (
	DecisionAllow  = "allow"
	DecisionReject = "reject"
)

// Input describes a message append to be admitted or rejected.
type Input struct {
	Type          string `json:"type"`
	ContentLength int    `json:"content_length"`
	ToolCallID    string `json:"tool_call_id"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.message_policy.result"),
		rego.Module("message_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the admission policy for one append.
// Returns: decision (allow, reject), reason (set when rejected), error.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default, so an empty result means the
		// module is broken rather than "allow".
		return "", "", fmt.Errorf("policy returned no result")
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return "", "", fmt.Errorf("policy returned unexpected type %T", results[0].Expressions[0].Value)
	}

	decision, _ := obj["decision"].(string)
	reason, _ := obj["reason"].(string)
	return decision, reason, nil
}

// DefaultPolicy is the default admission policy: the closed message-type
// set, the user content length bound, and the tool_call_id requirement
// for tool messages.
const DefaultPolicy = `
package message_policy

import rego.v1

default result := {"decision": "allow", "reason": ""}

result := {"decision": "reject", "reason": "unknown message type"} if {
	not valid_type
}

result := {"decision": "reject", "reason": "message is required"} if {
	valid_type
	input.type == "user"
	input.content_length == 0
}

result := {"decision": "reject", "reason": "message exceeds 4000 characters"} if {
	valid_type
	input.type == "user"
	input.content_length > 4000
}

result := {"decision": "reject", "reason": "tool messages require tool_call_id"} if {
	valid_type
	input.type == "tool"
	input.tool_call_id == ""
}

valid_type if input.type in {"user", "assistant", "tool", "system"}
`
