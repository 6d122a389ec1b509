package state

import (
	"context"
	"errors"
	"strings"
	"time"

	draft "github.com/goliatone/go-draft"
)

var ErrSurveyRequired = errors.New("state: survey is required")

var ErrBackendRequired = errors.New("state: backend is required")

const (
	// DefaultDomain namespaces survey drafts.
	DefaultDomain = "survey"
	// sentinelName marks the key used when no prompt is known.
	sentinelName = "last"
)

// Ref identifies one persisted draft: a domain plus the prompt the draft was
// generated from. Only the prompt text participates, never the generated
// content, so repeated generations for the same prompt share a key.
type Ref struct {
	Domain string
	Prompt string
}

// Identifier returns the canonical storage key. Prompts are trimmed and
// lowercased; an empty prompt maps to "<domain>:last", real prompts map to
// "<domain>:prompt:<prompt>" and therefore never collide with it.
func (r Ref) Identifier() string {
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		domain = DefaultDomain
	}
	prompt := NormalizePrompt(r.Prompt)
	if prompt == "" {
		return domain + ":" + sentinelName
	}
	return domain + ":prompt:" + prompt
}

// DeriveKey maps a prompt to its storage key in the default domain.
func DeriveKey(prompt string) string {
	return Ref{Prompt: prompt}.Identifier()
}

// SentinelKey returns the key used for drafts without a prompt.
func SentinelKey() string {
	return DeriveKey("")
}

// NormalizePrompt trims surrounding whitespace and lowercases.
func NormalizePrompt(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}

// Backend is a raw key/value store holding serialized drafts. Implementations
// must be safe for concurrent use; a missing key is (nil, false, nil).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// LookupStatus tags the outcome of a DraftStore lookup.
type LookupStatus string

const (
	LookupFound       LookupStatus = "found"
	LookupMissing     LookupStatus = "missing"
	LookupCorrupt     LookupStatus = "corrupt"
	LookupInvalid     LookupStatus = "invalid"
	LookupUnavailable LookupStatus = "unavailable"
)

// Lookup is the tagged result of DraftStore.Get. Only LookupFound carries a
// draft; every other status means "absent". Err is diagnostic only.
type Lookup struct {
	Draft  draft.Draft
	Status LookupStatus
	Err    error
}

// Found reports whether a valid stored draft was returned.
func (l Lookup) Found() bool {
	return l.Status == LookupFound
}

// LogEvent describes one store or session operation for logging.
type LogEvent struct {
	Op       string
	Key      string
	Status   LookupStatus
	Source   Source
	Duration time.Duration
	Err      error
}

// Logger records state events.
type Logger interface {
	LogState(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogState implements Logger.
func (f LoggerFunc) LogState(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogState(LogEvent) {}
