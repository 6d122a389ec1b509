package generate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/pkg/state"
	"github.com/goliatone/go-draft/pkg/state/sqlstore"
)

// Cache keeps one generated survey per normalized prompt.
type Cache interface {
	// Lookup returns the cached survey for prompt, if any.
	Lookup(ctx context.Context, prompt string) (draft.RawSurvey, bool, error)
	// Store records survey for prompt, replacing any earlier entry, and
	// returns it with the cache assigned id.
	Store(ctx context.Context, prompt string, survey draft.RawSurvey, model string) (draft.RawSurvey, error)
}

type memoryEntry struct {
	survey draft.RawSurvey
	model  string
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}}
}

func (c *MemoryCache) Lookup(_ context.Context, prompt string) (draft.RawSurvey, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[state.NormalizePrompt(prompt)]
	c.mu.RUnlock()
	if !ok {
		return draft.RawSurvey{}, false, nil
	}
	return cloneSurvey(entry.survey), true, nil
}

func (c *MemoryCache) Store(_ context.Context, prompt string, survey draft.RawSurvey, model string) (draft.RawSurvey, error) {
	key := state.NormalizePrompt(prompt)
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := cloneSurvey(survey)
	if existing, ok := c.entries[key]; ok {
		stored.ID = existing.survey.ID
	} else {
		c.nextID++
		stored.ID = c.nextID
	}
	stored.Cached = false
	c.entries[key] = memoryEntry{survey: stored, model: model}
	return cloneSurvey(stored), nil
}

// Len reports the number of cached prompts.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

const DefaultCacheTable = "surveys"

// SQLCache stores generated surveys in a table with a unique prompt column.
type SQLCache struct {
	db      *sql.DB
	dialect sqlstore.Dialect
	table   string
	now     func() time.Time
}

// SQLCacheOption configures a SQLCache.
type SQLCacheOption func(*SQLCache)

// WithCacheTable overrides DefaultCacheTable.
func WithCacheTable(table string) SQLCacheOption {
	return func(c *SQLCache) {
		if table = strings.TrimSpace(table); table != "" {
			c.table = table
		}
	}
}

// WithCacheClock overrides the created_at timestamp source.
func WithCacheClock(now func() time.Time) SQLCacheOption {
	return func(c *SQLCache) {
		if now != nil {
			c.now = now
		}
	}
}

// OpenSQLCache opens dsn and ensures the cache table exists.
func OpenSQLCache(ctx context.Context, dialect sqlstore.Dialect, dsn string, opts ...SQLCacheOption) (*SQLCache, error) {
	db, err := sqlstore.OpenDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	cache, err := NewSQLCache(ctx, db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

// NewSQLCache wraps an open database.
func NewSQLCache(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect, opts ...SQLCacheOption) (*SQLCache, error) {
	c := &SQLCache{db: db, dialect: dialect, table: DefaultCacheTable, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if err := c.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("generate: initialize cache schema: %w", err)
	}
	return c, nil
}

func (c *SQLCache) initSchema(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if c.dialect == sqlstore.Postgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id %s,
		prompt VARCHAR(512) NOT NULL UNIQUE,
		title VARCHAR(256) NOT NULL,
		payload TEXT NOT NULL,
		model_name VARCHAR(64) NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`, c.table, idColumn))
	return err
}

type cachedPayload struct {
	Title     string              `json:"title"`
	Questions []draft.RawQuestion `json:"questions"`
}

func (c *SQLCache) Lookup(ctx context.Context, prompt string) (draft.RawSurvey, bool, error) {
	var (
		id      int64
		payload string
	)
	err := c.db.QueryRowContext(ctx,
		c.dialect.Rebind(fmt.Sprintf(`SELECT id, payload FROM %s WHERE prompt = ?`, c.table)),
		state.NormalizePrompt(prompt),
	).Scan(&id, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return draft.RawSurvey{}, false, nil
	}
	if err != nil {
		return draft.RawSurvey{}, false, fmt.Errorf("generate: select cached survey: %w", err)
	}
	var body cachedPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return draft.RawSurvey{}, false, fmt.Errorf("generate: decode cached survey: %w", err)
	}
	return draft.RawSurvey{ID: id, Title: body.Title, Questions: body.Questions}, true, nil
}

func (c *SQLCache) Store(ctx context.Context, prompt string, survey draft.RawSurvey, model string) (draft.RawSurvey, error) {
	questions := survey.Questions
	if questions == nil {
		questions = []draft.RawQuestion{}
	}
	payload, err := json.Marshal(cachedPayload{Title: survey.Title, Questions: questions})
	if err != nil {
		return draft.RawSurvey{}, fmt.Errorf("generate: encode survey: %w", err)
	}
	var id int64
	err = c.db.QueryRowContext(ctx, c.dialect.Rebind(fmt.Sprintf(`
	INSERT INTO %s (prompt, title, payload, model_name, created_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (prompt) DO UPDATE SET
		title = excluded.title,
		payload = excluded.payload,
		model_name = excluded.model_name,
		created_at = excluded.created_at
	RETURNING id`, c.table)),
		state.NormalizePrompt(prompt), survey.Title, string(payload), model, c.now().UTC(),
	).Scan(&id)
	if err != nil {
		return draft.RawSurvey{}, fmt.Errorf("generate: upsert cached survey: %w", err)
	}
	stored := cloneSurvey(survey)
	stored.ID = id
	stored.Cached = false
	return stored, nil
}

// DB exposes the underlying handle.
func (c *SQLCache) DB() *sql.DB {
	return c.db
}

func (c *SQLCache) Close() error {
	return c.db.Close()
}
