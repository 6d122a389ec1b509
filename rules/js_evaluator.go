//go:build js_eval

package rules

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator runs rules with goja. Each evaluation gets its own runtime.
type jsEvaluator struct {
	cfg evaluatorConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *jsEvaluator) engine() string { return EngineJS }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, evaluationError(EngineJS, ctx.label(), expression, err)
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, evaluationError(EngineJS, "", expression, err)
	}
	return &jsCompiledRule{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) compile(expression string) (*goja.Program, error) {
	if expression == "" {
		return nil, errEmptyExpression
	}
	if cached, ok := e.cfg.cached(EngineJS, expression); ok {
		if program, ok := cached.(*goja.Program); ok {
			return program, nil
		}
	}
	program, err := goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, err
	}
	e.cfg.remember(EngineJS, expression, program)
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	for name, value := range ctx.variables() {
		if err := vm.Set(name, value); err != nil {
			return nil, evaluationError(EngineJS, ctx.label(), expression, err)
		}
	}
	for _, name := range e.cfg.registry.Names() {
		if err := vm.Set(name, e.cfg.registry.Bind(name)); err != nil {
			return nil, evaluationError(EngineJS, ctx.label(), expression, err)
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, evaluationError(EngineJS, ctx.label(), expression, err)
	}
	return value.Export(), nil
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression, r.program)
}

func jsEvaluatorAvailable() bool {
	return true
}
