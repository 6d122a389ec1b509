package activity

import (
	"context"
	"sync"
)

// CaptureHook records events for assertions in tests.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

// Notify records the event and returns any configured error.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Snapshot returns a copy of the recorded events.
func (h *CaptureHook) Snapshot() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.Events...)
}

// Verbs returns the recorded verbs in emission order.
func (h *CaptureHook) Verbs() []string {
	events := h.Snapshot()
	verbs := make([]string, 0, len(events))
	for _, event := range events {
		verbs = append(verbs, event.Verb)
	}
	return verbs
}
