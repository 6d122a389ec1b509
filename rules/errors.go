package rules

import (
	"errors"
	"fmt"
)

// EvaluationError reports a rule that failed to compile or run.
type EvaluationError struct {
	Engine string
	Rule   string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	rule := e.Rule
	if rule == "" {
		rule = "anonymous"
	}
	return fmt.Sprintf("rules: %s rule %q (%s): %v", e.Engine, rule, e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// evaluationError wraps err with rule metadata. An existing *EvaluationError
// is returned as is after filling its blank fields.
func evaluationError(engine, rule, expr string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Engine == "" {
			existing.Engine = engine
		}
		if existing.Rule == "" {
			existing.Rule = rule
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		return existing
	}
	return &EvaluationError{Engine: engine, Rule: rule, Expr: expr, Err: err}
}
