package rules_test

import (
	"errors"
	"testing"
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/rules"
)

func validSurvey() draft.RawSurvey {
	return draft.RawSurvey{
		Title:  "Cafe",
		Prompt: "cafe",
		Questions: []draft.RawQuestion{
			{Type: draft.RawRating, Text: "Overall", Scale: draft.NewScale(5)},
			{Type: draft.RawMultipleChoice, Text: "Which drink?", Options: draft.Labels{"Tea", "Coffee"}},
			{Type: draft.RawOpenText, Text: "Anything else?"},
		},
	}
}

func TestDefaultRulesPassAndFailPerEngine(t *testing.T) {
	for _, engine := range []string{rules.EngineExpr, rules.EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			checker, err := rules.NewChecker(rules.WithEngine(engine))
			if err != nil {
				t.Fatalf("new checker: %v", err)
			}
			if checker.Engine() != engine {
				t.Fatalf("expected engine %s, got %s", engine, checker.Engine())
			}
			if err := checker.Check(validSurvey()); err != nil {
				t.Fatalf("expected valid survey to pass, got %v", err)
			}

			bad := validSurvey()
			bad.Questions = bad.Questions[1:]

			err = checker.Check(bad)
			if !errors.Is(err, rules.ErrViolation) {
				t.Fatalf("expected violation, got %v", err)
			}
			var violation *rules.Violation
			if !errors.As(err, &violation) {
				t.Fatalf("expected *Violation, got %T", err)
			}
			got := map[string]bool{}
			for _, f := range violation.Failures {
				got[f.Rule] = true
			}
			for _, name := range []string{"question_count", "has_rating"} {
				if !got[name] {
					t.Fatalf("expected %s to fail, got %+v", name, violation.Failures)
				}
			}
			if got["has_open_text"] || got["has_multiple_choice"] {
				t.Fatalf("unexpected failures %+v", violation.Failures)
			}
		})
	}
}

func TestCheckerTooManyQuestions(t *testing.T) {
	checker, err := rules.NewChecker()
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	survey := validSurvey()
	for i := 0; i < 4; i++ {
		survey.Questions = append(survey.Questions, draft.RawQuestion{Type: draft.RawOpenText, Text: "extra"})
	}
	if err := checker.Check(survey); !errors.Is(err, rules.ErrViolation) {
		t.Fatalf("expected 7 questions to violate, got %v", err)
	}
}

func TestCheckerCustomRulesAndFunctions(t *testing.T) {
	var events []rules.LogEvent
	checker, err := rules.NewChecker(
		rules.WithFunctionRegistry(rules.SurveyFunctions()),
		rules.WithRules(
			rules.Rule{Name: "two_ratings", Expr: `count_type(questions, "rating") >= 2`, Message: "need two ratings"},
			rules.Rule{Name: "titled", Expr: `title != ""`},
		),
		rules.WithLogger(rules.LoggerFunc(func(e rules.LogEvent) { events = append(events, e) })),
	)
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}

	err = checker.Check(validSurvey())
	var violation *rules.Violation
	if !errors.As(err, &violation) || len(violation.Failures) != 1 || violation.Failures[0].Message != "need two ratings" {
		t.Fatalf("unexpected result %v", err)
	}
	if len(events) != 2 || events[0].Rule != "two_ratings" || events[0].Passed || !events[1].Passed {
		t.Fatalf("unexpected log events %+v", events)
	}
}

func TestSurveyFunctionsCallableFromEveryEngine(t *testing.T) {
	for _, tc := range []struct {
		engine string
		expr   string
	}{
		{engine: rules.EngineExpr, expr: `count_type(questions, "rating") == 1 && option_count(questions[1]) == 2`},
		{engine: rules.EngineCEL, expr: `count_type(questions, "rating") == 1 && option_count(questions[1]) == 2`},
	} {
		t.Run(tc.engine, func(t *testing.T) {
			checker, err := rules.NewChecker(
				rules.WithEngine(tc.engine),
				rules.WithFunctionRegistry(rules.SurveyFunctions()),
				rules.WithRules(rules.Rule{Name: "shape", Expr: tc.expr}),
			)
			if err != nil {
				t.Fatalf("new checker: %v", err)
			}
			if err := checker.Check(validSurvey()); err != nil {
				t.Fatalf("expected rule to pass, got %v", err)
			}
		})
	}
}

func TestRulesSeeTypedSurveyVariables(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		engine string
		expr   string
	}{
		{engine: rules.EngineExpr, expr: `title == "Cafe" && prompt == "cafe" && now.Year() == 2025`},
		{engine: rules.EngineCEL, expr: `title == "Cafe" && prompt == "cafe" && now.getFullYear() == 2025`},
	} {
		t.Run(tc.engine, func(t *testing.T) {
			checker, err := rules.NewChecker(
				rules.WithEngine(tc.engine),
				rules.WithClock(func() time.Time { return now }),
				rules.WithRules(rules.Rule{Name: "vars", Expr: tc.expr}),
			)
			if err != nil {
				t.Fatalf("new checker: %v", err)
			}
			if err := checker.Check(validSurvey()); err != nil {
				t.Fatalf("expected rule to pass, got %v", err)
			}
		})
	}
}

func TestUnknownVariablesFailAtCompile(t *testing.T) {
	for _, engine := range []string{rules.EngineExpr, rules.EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			_, err := rules.NewChecker(
				rules.WithEngine(engine),
				rules.WithRules(rules.Rule{Name: "typo", Expr: `questoins == title`}),
			)
			var evalErr *rules.EvaluationError
			if !errors.As(err, &evalErr) || evalErr.Rule != "typo" || evalErr.Engine != engine {
				t.Fatalf("expected compile error for typo, got %v", err)
			}
		})
	}
}

func TestCheckerNonBooleanRuleFails(t *testing.T) {
	checker, err := rules.NewChecker(rules.WithRules(rules.Rule{Name: "count", Expr: `len(questions)`}))
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	err = checker.Check(validSurvey())
	var violation *rules.Violation
	if !errors.As(err, &violation) {
		t.Fatalf("expected violation, got %v", err)
	}
	var evalErr *rules.EvaluationError
	if !errors.As(violation.Failures[0].Err, &evalErr) || evalErr.Rule != "count" || evalErr.Engine != rules.EngineExpr {
		t.Fatalf("expected evaluation error metadata, got %v", violation.Failures[0].Err)
	}
	if violation.Failures[0].Message != "rule count failed" {
		t.Fatalf("unexpected default message %q", violation.Failures[0].Message)
	}
}

func TestNewCheckerReportsCompileErrors(t *testing.T) {
	_, err := rules.NewChecker(rules.WithRules(rules.Rule{Name: "broken", Expr: `len(questions >=`}))
	var evalErr *rules.EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Rule != "broken" {
		t.Fatalf("expected compile EvaluationError, got %v", err)
	}

	if _, err := rules.NewChecker(rules.WithEngine("lua")); err == nil {
		t.Fatalf("expected unknown engine error")
	}
}

func TestProgramCacheReused(t *testing.T) {
	cache := rules.NewMemoryProgramCache()
	for i := 0; i < 2; i++ {
		if _, err := rules.NewChecker(rules.WithProgramCache(cache)); err != nil {
			t.Fatalf("new checker: %v", err)
		}
	}
	if cache.Len() != len(rules.DefaultRules(rules.EngineExpr)) {
		t.Fatalf("expected one cached program per rule, got %d", cache.Len())
	}
}

func TestSurveyEnv(t *testing.T) {
	env := rules.SurveyEnv(validSurvey())
	questions := env["questions"].([]any)
	rating := questions[0].(map[string]any)
	if rating["scale"] != float64(5) || rating["type"] != "rating" {
		t.Fatalf("unexpected rating env %v", rating)
	}
	if open := questions[2].(map[string]any); open["scale"] != nil {
		t.Fatalf("expected nil scale for open text, got %v", open["scale"])
	}
}
