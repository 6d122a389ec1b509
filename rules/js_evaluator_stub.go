//go:build !js_eval

package rules

// NewJSEvaluator returns nil unless built with the js_eval tag.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
