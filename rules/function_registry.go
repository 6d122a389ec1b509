package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function represents a callable registered against evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("rules: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("rules: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("rules: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("rules: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("rules: function %q not registered", name)
	}
	return fn(args...)
}

// Bind returns a Function that calls name through the registry.
func (r *FunctionRegistry) Bind(name string) Function {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SurveyFunctions returns a registry preloaded with survey helpers:
//
//	count_type(questions, type)  number of questions of the given raw type
//	option_count(question)       number of options of one question
func SurveyFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("count_type", countType)
	_ = registry.Register("option_count", optionCount)
	return registry
}

func countType(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("rules: count_type expects 2 arguments, got %d", len(args))
	}
	questions, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("rules: count_type expects a question list, got %T", args[0])
	}
	kind, _ := args[1].(string)
	count := 0
	for _, q := range questions {
		if m, ok := q.(map[string]any); ok && m["type"] == kind {
			count++
		}
	}
	return count, nil
}

func optionCount(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("rules: option_count expects 1 argument, got %d", len(args))
	}
	q, ok := args[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rules: option_count expects a question, got %T", args[0])
	}
	options, _ := q["options"].([]any)
	return len(options), nil
}
