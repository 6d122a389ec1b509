// Package generate produces raw surveys from free-text descriptions. It holds
// the provider abstraction (a deterministic stub and Gemini), a per-prompt
// response cache, rule checks on generated content, and an HTTP client for
// the generation endpoint.
package generate

import (
	"errors"
	"fmt"
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/rules"
)

var (
	// ErrEmptyDescription rejects blank descriptions before any work is done.
	ErrEmptyDescription = errors.New("generate: description is required")
	// ErrProvider wraps provider failures.
	ErrProvider = errors.New("generate: provider failed")
)

// Request is the body of POST /api/surveys/generate.
type Request struct {
	Description string `json:"description" validate:"required,max=512" maxLength:"512" doc:"Free-text description of the survey"`
	Fresh       bool   `json:"fresh,omitempty" doc:"Skip the cache and overwrite its entry"`
}

// RuleViolation reports a generated survey rejected by the rule checker.
type RuleViolation struct {
	Prompt   string
	Failures []rules.Failure
	Err      error
}

func (e *RuleViolation) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("generate: survey for %q rejected: %v", e.Prompt, e.Err)
}

func (e *RuleViolation) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPError reports a non-2xx response from the generation endpoint.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("generate: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("generate: HTTP %d: %s", e.StatusCode, e.Message)
}

// LogEvent describes one generation attempt.
type LogEvent struct {
	Op       string
	Prompt   string
	Provider string
	Cached   bool
	Duration time.Duration
	Err      error
}

// Logger records generation events.
type Logger interface {
	LogGeneration(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogGeneration implements Logger.
func (f LoggerFunc) LogGeneration(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogGeneration(LogEvent) {}

// cloneSurvey deep copies a raw survey so cached values are never shared.
func cloneSurvey(s draft.RawSurvey) draft.RawSurvey {
	out := s
	if s.Questions != nil {
		out.Questions = make([]draft.RawQuestion, len(s.Questions))
		for i, q := range s.Questions {
			out.Questions[i] = q
			if q.Options != nil {
				out.Questions[i].Options = append(draft.Labels(nil), q.Options...)
			}
		}
	}
	return out
}
