package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	draft "github.com/goliatone/go-draft"
)

// ErrViolation matches every *Violation via errors.Is.
var ErrViolation = errors.New("rules: survey violates quality rules")

// Rule is a named boolean expression evaluated against a survey.
type Rule struct {
	Name    string
	Expr    string
	Message string
}

// Failure records one rule that did not pass.
type Failure struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Violation lists the rules a survey failed.
type Violation struct {
	Failures []Failure
}

func (v *Violation) Error() string {
	if v == nil || len(v.Failures) == 0 {
		return ErrViolation.Error()
	}
	parts := make([]string, 0, len(v.Failures))
	for _, f := range v.Failures {
		parts = append(parts, f.Rule+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrViolation.Error(), strings.Join(parts, "; "))
}

func (v *Violation) Is(target error) bool {
	return target == ErrViolation
}

// DefaultRules returns the survey quality rules expressed for engine: three
// to six questions, including at least one rating, one multiple choice and
// one open text question.
func DefaultRules(engine string) []Rule {
	switch engine {
	case EngineCEL:
		return []Rule{
			{Name: "question_count", Expr: `size(questions) >= 3 && size(questions) <= 6`, Message: "survey must have 3 to 6 questions"},
			{Name: "has_rating", Expr: `questions.exists(q, q.type == "rating")`, Message: "survey needs a rating question"},
			{Name: "has_multiple_choice", Expr: `questions.exists(q, q.type == "multiple_choice")`, Message: "survey needs a multiple choice question"},
			{Name: "has_open_text", Expr: `questions.exists(q, q.type == "open_text")`, Message: "survey needs an open text question"},
		}
	case EngineJS:
		return []Rule{
			{Name: "question_count", Expr: `questions.length >= 3 && questions.length <= 6`, Message: "survey must have 3 to 6 questions"},
			{Name: "has_rating", Expr: `questions.some(q => q.type === "rating")`, Message: "survey needs a rating question"},
			{Name: "has_multiple_choice", Expr: `questions.some(q => q.type === "multiple_choice")`, Message: "survey needs a multiple choice question"},
			{Name: "has_open_text", Expr: `questions.some(q => q.type === "open_text")`, Message: "survey needs an open text question"},
		}
	default:
		return []Rule{
			{Name: "question_count", Expr: `len(questions) >= 3 && len(questions) <= 6`, Message: "survey must have 3 to 6 questions"},
			{Name: "has_rating", Expr: `any(questions, .type == "rating")`, Message: "survey needs a rating question"},
			{Name: "has_multiple_choice", Expr: `any(questions, .type == "multiple_choice")`, Message: "survey needs a multiple choice question"},
			{Name: "has_open_text", Expr: `any(questions, .type == "open_text")`, Message: "survey needs an open text question"},
		}
	}
}

// Option configures a Checker.
type Option func(*checkerConfig)

type checkerConfig struct {
	engine    string
	evaluator Evaluator
	rules     []Rule
	cache     ProgramCache
	functions *FunctionRegistry
	logger    Logger
	now       func() time.Time
}

// WithEngine selects the expression engine: "expr" (default), "cel" or "js".
func WithEngine(engine string) Option {
	return func(cfg *checkerConfig) {
		cfg.engine = strings.ToLower(strings.TrimSpace(engine))
	}
}

// WithEvaluator supplies a custom evaluator, bypassing engine selection.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *checkerConfig) {
		cfg.evaluator = evaluator
	}
}

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(cfg *checkerConfig) {
		cfg.rules = append([]Rule(nil), rules...)
	}
}

// WithProgramCache registers a program cache shared by compiled rules.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *checkerConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry functions to rule expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *checkerConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for rule expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *checkerConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithLogger attaches an evaluation logger.
func WithLogger(logger Logger) Option {
	return func(cfg *checkerConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithClock overrides the time bound to the now variable.
func WithClock(now func() time.Time) Option {
	return func(cfg *checkerConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// NewEvaluator builds the evaluator for engine.
func NewEvaluator(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch engine {
	case "", EngineExpr:
		return NewExprEvaluator(EvaluatorCache(cache), EvaluatorFunctions(registry)), nil
	case EngineCEL:
		return NewCELEvaluator(EvaluatorCache(cache), EvaluatorFunctions(registry)), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("rules: js engine requires the js_eval build tag")
		}
		return NewJSEvaluator(EvaluatorCache(cache), EvaluatorFunctions(registry)), nil
	default:
		return nil, fmt.Errorf("rules: unknown engine %q", engine)
	}
}

type compiledRule struct {
	Rule
	program CompiledRule
}

// Checker evaluates a fixed rule set against generated surveys. It is safe
// for concurrent use.
type Checker struct {
	evaluator Evaluator
	engine    string
	rules     []compiledRule
	logger    Logger
	now       func() time.Time
}

// NewChecker compiles the configured rules. Compile errors are returned as
// *EvaluationError.
func NewChecker(opts ...Option) (*Checker, error) {
	cfg := checkerConfig{logger: noopLogger{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.cache == nil {
		cfg.cache = NewMemoryProgramCache()
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		var err error
		evaluator, err = NewEvaluator(cfg.engine, cfg.cache, cfg.functions)
		if err != nil {
			return nil, err
		}
	}
	engine := engineName(evaluator)
	if cfg.rules == nil {
		cfg.rules = DefaultRules(engine)
	}

	c := &Checker{evaluator: evaluator, engine: engine, logger: cfg.logger, now: cfg.now}
	for _, rule := range cfg.rules {
		program, err := evaluator.Compile(rule.Expr)
		if err != nil {
			return nil, evaluationError(engine, rule.Name, rule.Expr, err)
		}
		c.rules = append(c.rules, compiledRule{Rule: rule, program: program})
	}
	return c, nil
}

// Engine reports the evaluator engine in use.
func (c *Checker) Engine() string {
	return c.engine
}

// Rules returns the configured rules.
func (c *Checker) Rules() []Rule {
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Rule)
	}
	return out
}

// Check evaluates every rule against survey and returns a *Violation listing
// the failures, or nil. A rule that errors or yields a non-boolean counts as
// failed.
func (c *Checker) Check(survey draft.RawSurvey) error {
	now := c.now()

	var failures []Failure
	for _, rule := range c.rules {
		start := time.Now()
		value, err := rule.program.Evaluate(RuleContext{Survey: survey, Now: &now, Rule: rule.Name})
		passed := false
		if err == nil {
			b, ok := value.(bool)
			if !ok {
				err = fmt.Errorf("result %T is not a boolean", value)
			}
			passed = ok && b
		}
		err = evaluationError(c.engine, rule.Name, rule.Expr, err)
		c.logger.LogEvaluation(LogEvent{
			Engine:   c.engine,
			Rule:     rule.Name,
			Expr:     rule.Expr,
			Passed:   passed,
			Duration: time.Since(start),
			Err:      err,
		})
		if !passed {
			message := rule.Message
			if message == "" {
				message = "rule " + rule.Name + " failed"
			}
			failures = append(failures, Failure{Rule: rule.Name, Message: message, Err: err})
		}
	}
	if len(failures) > 0 {
		return &Violation{Failures: failures}
	}
	return nil
}
