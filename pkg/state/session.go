package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/pkg/activity"
)

var ErrQuestionNotFound = errors.New("state: question not found")

// ErrDraftNotFound is returned by Restore when no valid draft is stored.
var ErrDraftNotFound = errors.New("state: no stored draft")

// Session owns the editable draft of one editing surface. It reconciles
// incoming surveys against stored drafts, applies edits and autosaves the
// result under the key derived from the survey prompt.
//
// Reconciliation follows a restore-first policy: when a valid draft is
// stored under the incoming key it wins over the incoming survey. Regenerate
// is the explicit one-shot override that discards stored edits.
type Session struct {
	mu      sync.Mutex
	store   *DraftStore
	cfg     sessionConfig
	emitter *activity.Emitter
	saver   *autosaver

	current draft.Draft
	key     string
	source  *draft.RawSurvey
	mounted bool
	epoch   uint64
	last    Decision
}

// NewSession creates a session persisting through store. Until the first
// reconciliation edits are saved under the sentinel key.
func NewSession(store *DraftStore, opts ...SessionOption) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if store == nil {
		store = NewDraftStore(nil)
	}
	s := &Session{
		store:   store,
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.hooks, cfg.activity),
		current: draft.Draft{Questions: []draft.Question{}},
		key:     Ref{Domain: cfg.domain}.Identifier(),
	}
	s.saver = newAutosaver(store, cfg.delay, s.key, s.reportWrite)
	return s
}

// Ingest reconciles an incoming survey. A new survey value or a new derived
// key triggers a lookup: a valid stored draft is restored, otherwise the
// survey is normalized. Re-ingesting the same survey under the same key is a
// no-op reported as SourceUnchanged. A nil survey resolves to the sentinel
// key.
func (s *Session) Ingest(ctx context.Context, raw *draft.RawSurvey) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.deriveKey(raw)
	if s.mounted && raw == s.source && key == s.key {
		decision := s.last
		decision.Source = SourceUnchanged
		return decision
	}
	return s.reconcile(ctx, raw, key, false)
}

// Regenerate discards any stored edits for the survey's key and replaces the
// draft with a fresh normalization of raw.
func (s *Session) Regenerate(ctx context.Context, raw *draft.RawSurvey) (Decision, error) {
	if raw == nil {
		return Decision{}, ErrSurveyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcile(ctx, raw, s.deriveKey(raw), true), nil
}

// Restore adopts the draft stored for prompt. Unlike Ingest it never falls
// back to a normalization: when the lookup does not return a valid draft the
// session is left as it was, nothing is written and the error wraps
// ErrDraftNotFound.
func (s *Session) Restore(ctx context.Context, prompt string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	key := Ref{Domain: s.cfg.domain, Prompt: prompt}.Identifier()
	if key == s.key {
		s.saver.flush()
	} else {
		s.saver.wait()
	}

	lookup := s.store.Get(ctx, key)
	if !lookup.Found() {
		s.cfg.logger.LogState(LogEvent{Op: "restore", Key: key, Status: lookup.Status, Err: lookup.Err, Duration: time.Since(start)})
		return Decision{Key: key, Lookup: lookup.Status}, fmt.Errorf("%w: %q is %s", ErrDraftNotFound, key, lookup.Status)
	}
	if key != s.key {
		s.saver.retarget(key)
	}

	s.epoch++
	decision := Decision{Key: key, Source: SourceRestored, Lookup: lookup.Status, Epoch: s.epoch}
	s.current = lookup.Draft
	if s.current.Questions == nil {
		s.current.Questions = []draft.Question{}
	}
	s.source = nil
	s.key = key
	s.mounted = true
	s.last = decision

	s.cfg.logger.LogState(LogEvent{Op: "restore", Key: key, Status: lookup.Status, Source: SourceRestored, Duration: time.Since(start)})
	s.emit(ctx, activity.VerbDraftRestored, activity.DraftEventInput{
		Key:       key,
		Lookup:    string(lookup.Status),
		Questions: len(s.current.Questions),
		Epoch:     decision.Epoch,
	})
	return decision, nil
}

func (s *Session) reconcile(ctx context.Context, raw *draft.RawSurvey, key string, fresh bool) Decision {
	start := time.Now()

	switch {
	case s.key != key:
		s.saver.retarget(key)
	case fresh:
		s.saver.discard()
	default:
		// pending edits must land before the lookup reads them back
		s.saver.flush()
	}
	s.epoch++
	decision := Decision{Key: key, Epoch: s.epoch}

	if fresh {
		s.current = draft.Normalize(*raw, draft.WithIDGenerator(s.cfg.ids))
		decision.Source = SourceRegenerated
	} else {
		lookup := s.store.Get(ctx, key)
		decision.Lookup = lookup.Status
		switch {
		case lookup.Found():
			s.current = lookup.Draft
			decision.Source = SourceRestored
		case raw != nil:
			s.current = draft.Normalize(*raw, draft.WithIDGenerator(s.cfg.ids))
			decision.Source = SourceNormalized
		default:
			decision.Source = SourceRetained
		}
	}
	if s.current.Questions == nil {
		s.current.Questions = []draft.Question{}
	}

	s.source = raw
	s.key = key
	s.mounted = true
	s.last = decision

	s.cfg.logger.LogState(LogEvent{
		Op:       "reconcile",
		Key:      key,
		Status:   decision.Lookup,
		Source:   decision.Source,
		Duration: time.Since(start),
	})
	s.emit(ctx, reconcileVerb(decision.Source), activity.DraftEventInput{
		Key:       key,
		Lookup:    string(decision.Lookup),
		Questions: len(s.current.Questions),
		Epoch:     decision.Epoch,
	})

	if decision.Source != SourceRetained || !s.current.IsZero() {
		s.persist(ctx)
	}
	return decision
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() draft.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Key returns the storage key the session currently writes to.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// LastDecision returns the outcome of the most recent reconciliation.
func (s *Session) LastDecision() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) SetTitle(ctx context.Context, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Title = title
	s.persist(ctx)
}

func (s *Session) SetDescription(ctx context.Context, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Description = description
	s.persist(ctx)
}

// ReplaceQuestions swaps the whole question list. Lists with empty or
// duplicate ids, or unknown types, are rejected and leave the draft as is.
func (s *Session) ReplaceQuestions(ctx context.Context, questions []draft.Question) error {
	if err := draft.ValidateQuestions(questions); err != nil {
		return err
	}
	next := draft.CloneQuestions(questions)
	if next == nil {
		next = []draft.Question{}
	}
	for i := range next {
		if next[i].Options == nil {
			next[i].Options = []draft.Option{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Questions = next
	s.persist(ctx)
	return nil
}

// AddQuestion appends a new blank question of type t and returns it.
func (s *Session) AddQuestion(ctx context.Context, t draft.QuestionType) (draft.Question, error) {
	q := draft.NewQuestion(t, draft.WithIDGenerator(s.cfg.ids))

	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(draft.CloneQuestions(s.current.Questions), q)
	if err := draft.ValidateQuestions(next); err != nil {
		return draft.Question{}, fmt.Errorf("state: add question: %w", err)
	}
	s.current.Questions = next
	s.persist(ctx)
	return draft.CloneQuestions([]draft.Question{q})[0], nil
}

// RemoveQuestion deletes the question with id.
func (s *Session) RemoveQuestion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.current.Questions {
		if q.ID != id {
			continue
		}
		next := make([]draft.Question, 0, len(s.current.Questions)-1)
		next = append(next, s.current.Questions[:i]...)
		next = append(next, s.current.Questions[i+1:]...)
		s.current.Questions = next
		s.persist(ctx)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrQuestionNotFound, id)
}

// DiscardStored deletes the stored draft for the current key and cancels
// any pending autosave. The in-memory draft is kept; the next edit writes it
// again.
func (s *Session) DiscardStored(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saver.discard()
	if err := s.store.remove(ctx, s.key); err != nil {
		return
	}
	s.emit(ctx, activity.VerbDraftDiscarded, activity.DraftEventInput{Key: s.key, Epoch: s.epoch})
}

// Flush writes any pending autosave and waits for writes in flight.
func (s *Session) Flush(ctx context.Context) {
	s.saver.flush()
}

// Close flushes pending writes. Edits made afterwards are saved
// synchronously.
func (s *Session) Close(ctx context.Context) {
	s.saver.close()
}

func (s *Session) deriveKey(raw *draft.RawSurvey) string {
	ref := Ref{Domain: s.cfg.domain}
	if raw != nil {
		ref.Prompt = raw.Prompt
	}
	return ref.Identifier()
}

// persist must be called with mu held.
func (s *Session) persist(ctx context.Context) {
	s.saver.schedule(ctx, s.key, s.current.Clone())
}

func (s *Session) reportWrite(w pendingWrite, err error, dropped bool) {
	input := activity.DraftEventInput{Key: w.key, Questions: len(w.draft.Questions), Err: err}
	switch {
	case dropped:
		s.cfg.logger.LogState(LogEvent{Op: "autosave.drop", Key: w.key})
		s.emit(w.ctx, activity.VerbDraftSaveDropped, input)
	case err != nil:
		s.cfg.logger.LogState(LogEvent{Op: "autosave", Key: w.key, Err: err})
		s.emit(w.ctx, activity.VerbDraftSaveFailed, input)
	default:
		s.emit(w.ctx, activity.VerbDraftSaved, input)
	}
}

func (s *Session) emit(ctx context.Context, verb string, input activity.DraftEventInput) {
	if !s.emitter.Enabled() {
		return
	}
	if err := s.emitter.Emit(ctx, activity.BuildDraftEvent(verb, input)); err != nil {
		s.cfg.logger.LogState(LogEvent{Op: "activity", Key: input.Key, Err: err})
	}
}

func reconcileVerb(source Source) string {
	switch source {
	case SourceRestored:
		return activity.VerbDraftRestored
	case SourceRegenerated:
		return activity.VerbDraftRegenerated
	case SourceRetained:
		return activity.VerbDraftRetained
	default:
		return activity.VerbDraftNormalized
	}
}
