package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " draft.saved ",
		ActorID:    " actor ",
		UserID:     " user ",
		TenantID:   " tenant ",
		ObjectType: " survey_draft ",
		ObjectID:   " survey:last ",
		Channel:    " drafts ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "draft.saved" || got.ObjectType != "survey_draft" || got.ObjectID != "survey:last" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "drafts" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	if got.Metadata["k"] != "v" {
		t.Fatalf("expected metadata value preserved: %+v", got.Metadata)
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	hooks := Hooks{&CaptureHook{}}
	err := hooks.Notify(context.Background(), Event{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	capture := hooks[0].(*CaptureHook)
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			if ctx != nil {
				ctxSeen = true
			}
			return nil
		}),
		capture,
		HookFunc(func(_ context.Context, _ Event) error { return boom1 }),
		nil,
		HookFunc(func(_ context.Context, _ Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: VerbDraftSaved, ObjectType: ObjectTypeDraft, ObjectID: "survey:last"})
	if err == nil || !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestHooksNotifyIsolatesPanickingHook(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{
		HookFunc(func(context.Context, Event) error { panic("sink exploded") }),
		capture,
	}

	err := hooks.Notify(context.Background(), Event{Verb: VerbDraftSaved, ObjectType: ObjectTypeDraft, ObjectID: "survey:last"})

	var hookErr *HookError
	if !errors.As(err, &hookErr) {
		t.Fatalf("expected HookError, got %v", err)
	}
	if hookErr.Index != 0 || hookErr.Verb != VerbDraftSaved || hookErr.Key != "survey:last" {
		t.Fatalf("unexpected hook error %+v", hookErr)
	}
	if len(capture.Snapshot()) != 1 {
		t.Fatalf("expected later hooks to still run")
	}
}

func TestOnlyFiltersByVerb(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{Only(capture, VerbDraftSaveFailed)}
	ctx := context.Background()

	for _, verb := range []string{VerbDraftSaved, VerbDraftSaveFailed, VerbDraftRestored} {
		if err := hooks.Notify(ctx, Event{Verb: verb, ObjectType: ObjectTypeDraft, ObjectID: "survey:last"}); err != nil {
			t.Fatalf("notify %s: %v", verb, err)
		}
	}
	if got := capture.Verbs(); len(got) != 1 || got[0] != VerbDraftSaveFailed {
		t.Fatalf("expected only save failures, got %v", got)
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), Event{Verb: VerbDraftRestored, ObjectType: ObjectTypeDraft, ObjectID: "survey:last"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: ""})
	if !enabled.Enabled() {
		t.Fatalf("expected emitter to be enabled")
	}
	if err := enabled.Emit(context.Background(), Event{Verb: VerbDraftRestored, ObjectType: ObjectTypeDraft, ObjectID: "survey:last"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events))
	}
	if capture.Events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", capture.Events[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})

	err := emitter.Emit(context.Background(), Event{
		Verb:       VerbDraftNormalized,
		ObjectType: ObjectTypeDraft,
		ObjectID:   "survey:prompt:coffee",
		Channel:    "custom",
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", capture.Events[0].Channel)
	}
	if capture.Events[0].OccurredAt != (time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected occurred_at preserved, got %v", capture.Events[0].OccurredAt)
	}
}

func TestEmitterFillsActorDefaults(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, ActorID: " actor-1 ", UserID: "user-1"})

	_ = emitter.Emit(context.Background(), BuildDraftEvent(VerbDraftSaved, DraftEventInput{Key: "survey:last"}))
	_ = emitter.Emit(context.Background(), BuildDraftEvent(VerbDraftSaved, DraftEventInput{Key: "survey:last", ActorID: "explicit"}))

	events := capture.Snapshot()
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	if events[0].ActorID != "actor-1" || events[0].UserID != "user-1" {
		t.Fatalf("expected configured actor defaults, got %+v", events[0])
	}
	if events[1].ActorID != "explicit" {
		t.Fatalf("expected explicit actor preserved, got %q", events[1].ActorID)
	}
	if got := capture.Verbs(); got[0] != VerbDraftSaved || got[1] != VerbDraftSaved {
		t.Fatalf("unexpected verbs %v", got)
	}
}
