package rules

import (
	"time"

	draft "github.com/goliatone/go-draft"
)

// Variables every rule expression can reference.
const (
	VarTitle     = "title"
	VarPrompt    = "prompt"
	VarQuestions = "questions"
	VarNow       = "now"
)

// RuleContext carries the survey one rule is evaluated against. Now defaults
// to the wall clock.
type RuleContext struct {
	Survey draft.RawSurvey
	Now    *time.Time
	Rule   string
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now != nil {
		return *ctx.Now
	}
	return time.Now()
}

func (ctx RuleContext) label() string {
	if ctx.Rule != "" {
		return ctx.Rule
	}
	return "anonymous"
}

// variables binds the context to the names rules see.
func (ctx RuleContext) variables() map[string]any {
	env := SurveyEnv(ctx.Survey)
	env[VarNow] = ctx.timestamp()
	return env
}

// SurveyEnv exposes a survey to rule expressions as plain maps and slices:
// title, prompt and questions, each question carrying type, text, options
// and scale (nil when unset).
func SurveyEnv(survey draft.RawSurvey) map[string]any {
	questions := make([]any, 0, len(survey.Questions))
	for _, q := range survey.Questions {
		options := make([]any, 0, len(q.Options))
		for _, label := range q.Options {
			options = append(options, label)
		}
		var scale any
		if value, ok := q.Scale.Value(); ok {
			scale = value
		}
		questions = append(questions, map[string]any{
			"type":    q.Type,
			"text":    q.Text,
			"options": options,
			"scale":   scale,
		})
	}
	return map[string]any{
		VarTitle:     survey.Title,
		VarPrompt:    survey.Prompt,
		VarQuestions: questions,
	}
}

// Evaluator executes expressions against a survey.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// Engine names accepted by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

func engineName(e Evaluator) string {
	if named, ok := e.(interface{ engine() string }); ok {
		return named.engine()
	}
	if e == nil {
		return "unknown"
	}
	return "custom"
}
