package state_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/pkg/state"
)

func sequentialIDs() draft.IDGenerator {
	var mu sync.Mutex
	n := 0
	return draft.IDGeneratorFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

// countingBackend wraps a MemoryBackend and counts writes per key.
type countingBackend struct {
	*state.MemoryBackend
	mu     sync.Mutex
	writes map[string]int
}

func newCountingBackend() *countingBackend {
	return &countingBackend{MemoryBackend: state.NewMemoryBackend(), writes: map[string]int{}}
}

func (b *countingBackend) Set(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.writes[key]++
	b.mu.Unlock()
	return b.MemoryBackend.Set(ctx, key, value)
}

func (b *countingBackend) Writes(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes[key]
}

// gatedBackend blocks the first Set after arm until release is closed.
type gatedBackend struct {
	*state.MemoryBackend
	armed   atomic.Bool
	started chan struct{}
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		MemoryBackend: state.NewMemoryBackend(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (b *gatedBackend) arm() { b.armed.Store(true) }

func (b *gatedBackend) Set(ctx context.Context, key string, value []byte) error {
	if b.armed.CompareAndSwap(true, false) {
		close(b.started)
		<-b.release
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

var errBackendDown = errors.New("backend down")

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errBackendDown
}

func (failingBackend) Set(context.Context, string, []byte) error { return errBackendDown }

func (failingBackend) Delete(context.Context, string) error { return errBackendDown }

type panickingBackend struct{}

func (panickingBackend) Get(context.Context, string) ([]byte, bool, error) { panic("boom") }

func (panickingBackend) Set(context.Context, string, []byte) error { panic("boom") }

func (panickingBackend) Delete(context.Context, string) error { panic("boom") }

func coffeeSurvey() *draft.RawSurvey {
	return &draft.RawSurvey{
		Title:  "Coffee Shop Feedback",
		Prompt: "Coffee shop",
		Questions: []draft.RawQuestion{
			{Type: draft.RawRating, Text: "How was your visit?", Scale: draft.NewScale(3)},
			{Type: draft.RawMultipleChoice, Text: "What did you order?", Options: draft.Labels{"Espresso", "Latte"}},
			{Type: draft.RawOpenText, Text: "Anything else?"},
		},
	}
}

func storedDraft(t *testing.T, backend state.Backend, key string) (draft.Draft, bool) {
	t.Helper()
	lookup := state.NewDraftStore(backend).Get(context.Background(), key)
	return lookup.Draft, lookup.Found()
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
