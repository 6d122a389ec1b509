package rules

import (
	"fmt"
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// maxFunctionArity bounds the overloads declared per registry function.
const maxFunctionArity = 3

// celEvaluator runs rules with cel-go. The environment declares the survey
// variables with their types and is built once per evaluator.
type celEvaluator struct {
	cfg evaluatorConfig

	envOnce sync.Once
	env     *celgo.Env
	envErr  error
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *celEvaluator) engine() string { return EngineCEL }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, evaluationError(EngineCEL, ctx.label(), expression, err)
	}
	return e.run(ctx, expression, program)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, evaluationError(EngineCEL, "", expression, err)
	}
	return &celCompiledRule{evaluator: e, expression: expression, program: program}, nil
}

func (e *celEvaluator) compile(expression string) (celgo.Program, error) {
	if expression == "" {
		return nil, errEmptyExpression
	}
	if cached, ok := e.cfg.cached(EngineCEL, expression); ok {
		if program, ok := cached.(celgo.Program); ok {
			return program, nil
		}
	}
	env, err := e.environment()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.cfg.remember(EngineCEL, expression, program)
	return program, nil
}

func (e *celEvaluator) run(ctx RuleContext, expression string, program celgo.Program) (any, error) {
	out, _, err := program.Eval(ctx.variables())
	if err != nil {
		return nil, evaluationError(EngineCEL, ctx.label(), expression, err)
	}
	if b, ok := out.(types.Bool); ok {
		return bool(b), nil
	}
	return out.Value(), nil
}

func (e *celEvaluator) environment() (*celgo.Env, error) {
	e.envOnce.Do(func() {
		opts := []celgo.EnvOption{
			celgo.Variable(VarTitle, celgo.StringType),
			celgo.Variable(VarPrompt, celgo.StringType),
			celgo.Variable(VarQuestions, celgo.ListType(celgo.MapType(celgo.StringType, celgo.DynType))),
			celgo.Variable(VarNow, celgo.TimestampType),
		}
		for _, name := range e.cfg.registry.Names() {
			opts = append(opts, celFunction(name, e.cfg.registry.Bind(name)))
		}
		e.env, e.envErr = celgo.NewEnv(opts...)
	})
	return e.env, e.envErr
}

// celFunction declares fn with dyn overloads of one to maxFunctionArity
// arguments. Arguments reach fn as their native Go values.
func celFunction(name string, fn Function) celgo.EnvOption {
	binding := celgo.FunctionBinding(func(values ...ref.Val) ref.Val {
		args := make([]any, 0, len(values))
		for _, value := range values {
			args = append(args, value.Value())
		}
		result, err := fn(args...)
		if err != nil {
			return types.NewErr("%s", err)
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	})

	overloads := make([]celgo.FunctionOpt, 0, maxFunctionArity)
	for arity := 1; arity <= maxFunctionArity; arity++ {
		params := make([]*celgo.Type, arity)
		for i := range params {
			params[i] = celgo.DynType
		}
		overloads = append(overloads, celgo.Overload(fmt.Sprintf("%s_dyn_%d", name, arity), params, celgo.DynType, binding))
	}
	return celgo.Function(name, overloads...)
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
	program    celgo.Program
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression, r.program)
}
