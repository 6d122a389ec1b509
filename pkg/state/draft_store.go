package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/internal/hydrate"
)

// DraftStore persists drafts as JSON documents in a Backend. It never
// surfaces failures to callers: reads degrade to a non-found Lookup, writes
// are logged and dropped.
type DraftStore struct {
	backend Backend
	decoder *hydrate.Decoder[draft.Draft]
	logger  Logger
}

// StoreOption configures a DraftStore.
type StoreOption func(*DraftStore)

// WithStoreLogger routes store events to logger.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *DraftStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDraftStore wraps backend. A nil backend yields a store whose reads
// report LookupUnavailable and whose writes are no-ops.
func NewDraftStore(backend Backend, opts ...StoreOption) *DraftStore {
	s := &DraftStore{
		backend: backend,
		decoder: newDraftDecoder(),
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the draft stored under key. Unparseable values report
// LookupCorrupt, values of the wrong shape LookupInvalid and backend
// failures LookupUnavailable.
func (s *DraftStore) Get(ctx context.Context, key string) (lookup Lookup) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			lookup = Lookup{Status: LookupUnavailable, Err: fmt.Errorf("state: backend panic: %v", r)}
		}
		s.logger.LogState(LogEvent{Op: "get", Key: key, Status: lookup.Status, Duration: time.Since(start), Err: lookup.Err})
	}()

	if s.backend == nil {
		return Lookup{Status: LookupUnavailable, Err: ErrBackendRequired}
	}
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return Lookup{Status: LookupUnavailable, Err: err}
	}
	if !ok {
		return Lookup{Status: LookupMissing}
	}

	d, err := s.decoder.DecodeBytes(hydrate.Context{Key: key}, raw)
	switch {
	case errors.Is(err, hydrate.ErrMalformed):
		return Lookup{Status: LookupCorrupt, Err: err}
	case err != nil:
		return Lookup{Status: LookupInvalid, Err: err}
	}
	return Lookup{Draft: d, Status: LookupFound}
}

// Set stores d under key, overwriting any prior value.
func (s *DraftStore) Set(ctx context.Context, key string, d draft.Draft) {
	_ = s.save(ctx, key, d)
}

// Delete removes the value under key. Missing keys are not an error.
func (s *DraftStore) Delete(ctx context.Context, key string) {
	_ = s.remove(ctx, key)
}

func (s *DraftStore) save(ctx context.Context, key string, d draft.Draft) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("state: backend panic: %v", r)
		}
		s.logger.LogState(LogEvent{Op: "set", Key: key, Duration: time.Since(start), Err: err})
	}()

	if s.backend == nil {
		return ErrBackendRequired
	}
	payload, err := encodeDraft(d)
	if err != nil {
		return fmt.Errorf("state: encode draft: %w", err)
	}
	return s.backend.Set(ctx, key, payload)
}

func (s *DraftStore) remove(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("state: backend panic: %v", r)
		}
		s.logger.LogState(LogEvent{Op: "delete", Key: key, Duration: time.Since(start), Err: err})
	}()

	if s.backend == nil {
		return ErrBackendRequired
	}
	return s.backend.Delete(ctx, key)
}
