// Package sqlstore provides a database/sql backed state.Backend. SQLite
// (modernc.org/sqlite) and PostgreSQL (pgx) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and driver name.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// ParseDialect maps driver or dialect names onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", name)
	}
}

// Rebind rewrites "?" placeholders for dialects that number them.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// OpenDB opens a database for dialect with pool settings suited to it.
func OpenDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dialect == SQLite {
		// a single connection keeps ":memory:" databases alive and
		// serialises writers
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

const DefaultTable = "survey_drafts"

// Store keeps one row per draft key.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTable overrides the table name.
func WithTable(table string) Option {
	return func(s *Store) {
		if table = strings.TrimSpace(table); table != "" {
			s.table = table
		}
	}
}

// WithClock overrides the timestamp source for updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to dsn using the dialect's driver and ensures the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*Store, error) {
	db, err := OpenDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	store, err := New(ctx, db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database and creates the drafts table if needed.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	s := &Store{db: db, dialect: dialect, table: DefaultTable, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		draft_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, s.table))
	return err
}

func (s *Store) bind(query string) string {
	return s.dialect.Rebind(query)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		s.bind(fmt.Sprintf(`SELECT payload FROM %s WHERE draft_key = ?`, s.table)), key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select draft: %w", err)
	}
	return []byte(payload), true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.bind(fmt.Sprintf(`
	INSERT INTO %s (draft_key, payload, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (draft_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`, s.table)),
		key, string(value), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		s.bind(fmt.Sprintf(`DELETE FROM %s WHERE draft_key = ?`, s.table)), key,
	); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Keys lists stored draft keys ordered by most recent update.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT draft_key FROM %s ORDER BY updated_at DESC, draft_key`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan draft key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
