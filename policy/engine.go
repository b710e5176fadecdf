// Package policy evaluates whether a capture submission is accepted before
// the lead reaches the CRM.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions produced by the capture policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.capture_policy.decision"),
		rego.Module("capture_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the capture policy. Input is a map with keys name and
// email. Returns allow or block.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// DefaultPolicy is the default capture policy: junk and disposable-email
// submissions never become CRM leads.
const DefaultPolicy = `
package capture_policy

import rego.v1

default decision := "allow"

blocked_domains := {"mailinator.com", "guerrillamail.com", "yopmail.com", "10minutemail.com"}

decision := "block" if {
	some domain in blocked_domains
	endswith(lower(input.email), sprintf("@%s", [domain]))
}

decision := "block" if {
	not contains(input.email, "@")
}
`
