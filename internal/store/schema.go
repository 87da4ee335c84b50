// Package store provides SQLite-backed persistence for books, notes and their
// semantic links, with optional FTS5 full-text search.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS books (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_books_user ON books(user_id, created_at);

CREATE TABLE IF NOT EXISTS notes (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	book_id        TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	content        TEXT NOT NULL DEFAULT '',
	quote          TEXT NOT NULL DEFAULT '',
	page_ref       TEXT NOT NULL DEFAULT '',
	same_book_only INTEGER NOT NULL DEFAULT 0,
	embedding      BLOB,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
CREATE INDEX IF NOT EXISTS idx_notes_book ON notes(book_id, created_at);

CREATE TABLE IF NOT EXISTS note_links (
	user_id       TEXT NOT NULL,
	left_note_id  TEXT NOT NULL,
	right_note_id TEXT NOT NULL,
	score         REAL NOT NULL,
	link_type     TEXT NOT NULL DEFAULT 'semantic',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, left_note_id, right_note_id)
);

CREATE INDEX IF NOT EXISTS idx_note_links_left ON note_links(user_id, left_note_id);
CREATE INDEX IF NOT EXISTS idx_note_links_right ON note_links(user_id, right_note_id);
`

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn             *sql.DB
	collectionFilter bool
}

// Option configures a DB.
type Option func(*DB)

// WithCollectionFilter controls whether Match honours the same-book filter.
// When disabled, book-restricted queries fail with apperr.ErrUnsupported.
func WithCollectionFilter(enabled bool) Option {
	return func(db *DB) {
		db.collectionFilter = enabled
	}
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}

	db := &DB{conn: conn, collectionFilter: true}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
