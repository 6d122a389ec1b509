package rules

import "errors"

var errEmptyExpression = errors.New("expression must not be empty")

// EvaluatorOption configures any of the built-in evaluators.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EvaluatorCache stores compiled programs in cache. Keys are namespaced per
// engine so one cache can back several evaluators.
func EvaluatorCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// EvaluatorFunctions exposes the functions of registry to expressions under
// their registered names.
func EvaluatorFunctions(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.registry = registry.Clone()
	}
}

func newEvaluatorConfig(opts []EvaluatorOption) evaluatorConfig {
	var cfg evaluatorConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg evaluatorConfig) cached(engine, expression string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(engine + ":" + expression)
}

func (cfg evaluatorConfig) remember(engine, expression string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(engine+":"+expression, program)
	}
}
