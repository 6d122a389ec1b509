package rules

import (
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator runs rules with github.com/expr-lang/expr. It is the default
// engine. Expressions are type checked against the survey variables, so a
// misspelled variable fails at compile time.
type exprEvaluator struct {
	cfg evaluatorConfig
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *exprEvaluator) engine() string { return EngineExpr }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, evaluationError(EngineExpr, ctx.label(), expression, err)
	}
	return e.run(ctx, expression, program)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, evaluationError(EngineExpr, "", expression, err)
	}
	return &exprCompiledRule{evaluator: e, expression: expression, program: program}, nil
}

func (e *exprEvaluator) compile(expression string) (*exprvm.Program, error) {
	if expression == "" {
		return nil, errEmptyExpression
	}
	if cached, ok := e.cfg.cached(EngineExpr, expression); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return program, nil
		}
	}
	options := []exprlang.Option{exprlang.Env(exprDeclarations())}
	for _, name := range e.cfg.registry.Names() {
		options = append(options, exprlang.Function(name, e.cfg.registry.Bind(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	e.cfg.remember(EngineExpr, expression, program)
	return program, nil
}

func (e *exprEvaluator) run(ctx RuleContext, expression string, program *exprvm.Program) (any, error) {
	result, err := exprlang.Run(program, ctx.variables())
	if err != nil {
		return nil, evaluationError(EngineExpr, ctx.label(), expression, err)
	}
	return result, nil
}

// exprDeclarations describes the variable types for the type checker.
func exprDeclarations() map[string]any {
	return map[string]any{
		VarTitle:     "",
		VarPrompt:    "",
		VarQuestions: []any{},
		VarNow:       time.Time{},
	}
}

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	expression string
	program    *exprvm.Program
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression, r.program)
}
