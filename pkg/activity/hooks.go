package activity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Event is one draft lifecycle occurrence. ObjectID carries the draft's
// storage key; IDs stay strings so callers are not tied to a UUID type.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

func (e Event) routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized activity events. Sessions notify hooks
// from autosave goroutines, so implementations must be safe for concurrent
// use.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// HookError reports a hook that failed or panicked while handling an event.
type HookError struct {
	Verb  string
	Key   string
	Index int
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("activity: hook %d on %s for %q: %v", e.Index, e.Verb, e.Key, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Only forwards events whose verb is one of verbs to hook.
func Only(hook ActivityHook, verbs ...string) ActivityHook {
	allowed := slices.Clone(verbs)
	return HookFunc(func(ctx context.Context, event Event) error {
		if hook == nil || !slices.Contains(allowed, event.Verb) {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// Hooks fans events out to every hook in order.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and hands it to every hook. Events without a verb,
// object type or key are dropped. A failing or panicking hook does not stop
// the others; their failures come back joined as *HookError values.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := notifyOne(ctx, hook, normalized); err != nil {
			errs = append(errs, &HookError{Verb: normalized.Verb, Key: normalized.ObjectID, Index: i, Err: err})
		}
	}
	return errors.Join(errs...)
}

func notifyOne(ctx context.Context, hook ActivityHook, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook.Notify(ctx, event)
}

// NormalizeEvent trims identifiers, clones metadata and stamps OccurredAt.
func NormalizeEvent(event Event) Event {
	normalized := event
	for _, field := range []*string{
		&normalized.Verb, &normalized.ActorID, &normalized.UserID, &normalized.TenantID,
		&normalized.ObjectType, &normalized.ObjectID, &normalized.Channel,
	} {
		*field = strings.TrimSpace(*field)
	}
	normalized.Metadata = CloneMetadata(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

// CloneMetadata returns a shallow copy of src, or nil when src is empty.
func CloneMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
