//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/marginalia/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; text search uses LIKE on notes.content and notes.quote.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _ *models.Note) error { return nil }

func ftsDelete(_ context.Context, _ *sql.Tx, _ string) {}

// TextSearch performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) TextSearch(ctx context.Context, userID, query string, limit int) (_ []models.SearchHit, err error) {
	done := timeOp("text_search")
	defer func() { done(err) }()

	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id, n.book_id, b.title, n.content, n.quote, n.page_ref, substr(n.content, 1, 200)
		FROM notes n
		JOIN books b ON b.id = n.book_id
		WHERE n.user_id = ? AND (n.content LIKE ? OR n.quote LIKE ?)
		ORDER BY n.created_at DESC
		LIMIT ?
	`, userID, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: text search: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}
