package rules

import "testing"

func TestFunctionRegistryRegisterAndCall(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("Double", func(args ...any) (any, error) { return args[0].(int) * 2, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("double", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function rejected")
	}

	got, err := registry.Call("DOUBLE", 21)
	if err != nil || got != 42 {
		t.Fatalf("unexpected call result %v err=%v", got, err)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected missing function error")
	}

	clone := registry.Clone()
	_ = clone.Register("extra", func(...any) (any, error) { return nil, nil })
	if len(registry.Names()) != 1 || len(clone.Names()) != 2 {
		t.Fatalf("expected clone isolated, got %v / %v", registry.Names(), clone.Names())
	}
}

func TestSurveyFunctions(t *testing.T) {
	registry := SurveyFunctions()
	questions := []any{
		map[string]any{"type": "rating", "options": []any{}},
		map[string]any{"type": "multiple_choice", "options": []any{"a", "b"}},
		map[string]any{"type": "rating"},
	}

	if got, err := registry.Call("count_type", questions, "rating"); err != nil || got != 2 {
		t.Fatalf("count_type = %v, %v", got, err)
	}
	if got, err := registry.Call("option_count", questions[1]); err != nil || got != 2 {
		t.Fatalf("option_count = %v, %v", got, err)
	}
	if _, err := registry.Call("count_type", "nope"); err == nil {
		t.Fatalf("expected arity error")
	}
}
