package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-draft/generate"
	"github.com/goliatone/go-draft/generate/httpapi"
	"github.com/goliatone/go-draft/pkg/state"
	"github.com/goliatone/go-draft/pkg/state/sqlstore"
)

type harness struct {
	api string
	dsn string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	svc, err := generate.NewService(generate.StubProvider{}, generate.WithCache(generate.NewMemoryCache()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	server := httptest.NewServer(httpapi.NewRouter(httpapi.Config{Generator: svc}))
	t.Cleanup(server.Close)
	return harness{api: server.URL, dsn: filepath.Join(t.TempDir(), "drafts.db")}
}

func (h harness) run(t *testing.T, args ...string) (output, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--api", h.api, "--store", "sqlite", "--dsn", h.dsn}, args...))
	err := cmd.ExecuteContext(context.Background())
	var out output
	if err == nil {
		if decodeErr := json.Unmarshal(stdout.Bytes(), &out); decodeErr != nil {
			t.Fatalf("decode output %q: %v", stdout.String(), decodeErr)
		}
	}
	return out, err
}

func TestGenerateEditShowDiscard(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "generate", "Coffee shop")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Key != "survey:prompt:coffee shop" || out.Decision.Source != state.SourceNormalized {
		t.Fatalf("unexpected generate output: %#v", out)
	}
	if out.Draft.Title != "Coffee Shop" || len(out.Draft.Questions) != 3 {
		t.Fatalf("unexpected draft: %#v", out.Draft)
	}

	if _, err := h.run(t, "set-title", "coffee shop", "Espresso feedback"); err != nil {
		t.Fatalf("set-title: %v", err)
	}
	out, err = h.run(t, "add-question", "coffee shop", "shortAnswer")
	if err != nil {
		t.Fatalf("add-question: %v", err)
	}
	if len(out.Draft.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(out.Draft.Questions))
	}
	added := out.Draft.Questions[3].ID

	out, err = h.run(t, "generate", "  COFFEE SHOP ")
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if out.Decision.Source != state.SourceRestored || out.Draft.Title != "Espresso feedback" {
		t.Fatalf("expected stored edits to be restored, got %#v", out)
	}

	if _, err := h.run(t, "remove-question", "coffee shop", added); err != nil {
		t.Fatalf("remove-question: %v", err)
	}
	out, err = h.run(t, "show", "coffee shop")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if out.Status != string(state.LookupFound) || len(out.Draft.Questions) != 3 {
		t.Fatalf("unexpected show output: %#v", out)
	}

	if _, err := h.run(t, "discard", "coffee shop"); err != nil {
		t.Fatalf("discard: %v", err)
	}
	out, _ = h.run(t, "show", "coffee shop")
	if out.Status != string(state.LookupMissing) || out.Draft != nil {
		t.Fatalf("expected missing draft after discard, got %#v", out)
	}
}

func TestRegenerateReplacesStoredEdits(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "generate", "onboarding"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := h.run(t, "set-title", "onboarding", "Edited"); err != nil {
		t.Fatalf("set-title: %v", err)
	}

	out, err := h.run(t, "regenerate", "onboarding")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if out.Decision.Source != state.SourceRegenerated || out.Draft.Title != "Onboarding" {
		t.Fatalf("unexpected regenerate output: %#v", out)
	}
}

func TestEditsRequireStoredDraft(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "set-title", "never generated", "x"); !errors.Is(err, errNoDraft) {
		t.Fatalf("expected errNoDraft, got %v", err)
	}
	if _, err := h.run(t, "add-question", "never generated", "matrix"); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestEditsLeaveUnreadableDraftAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.SQLite, h.dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	key := state.DeriveKey("coffee shop")
	if err := store.Set(ctx, key, []byte(`{"questions":`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := h.run(t, "set-title", "coffee shop", "x"); !errors.Is(err, errNoDraft) {
		t.Fatalf("expected errNoDraft, got %v", err)
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok || string(raw) != `{"questions":` {
		t.Fatalf("expected stored payload untouched, got %q %v %v", raw, ok, err)
	}
}

func TestGenerateReportsAPIErrors(t *testing.T) {
	h := newHarness(t)
	h.api = "http://127.0.0.1:1"
	if _, err := h.run(t, "generate", "x"); err == nil {
		t.Fatalf("expected connection error")
	}
}
