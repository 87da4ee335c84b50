//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/marginalia/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			note_id UNINDEXED,
			user_id UNINDEXED,
			content,
			quote,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, n *models.Note) error {
	_, _ = tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE note_id = ?`, n.ID)
	_, err := tx.ExecContext(ctx, `INSERT INTO notes_fts (note_id, user_id, content, quote) VALUES (?, ?, ?, ?)`,
		n.ID, n.UserID, n.Content, n.Quote)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, noteID string) {
	_, _ = tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE note_id = ?`, noteID)
}

// TextSearch performs an FTS5 full-text search over a user's notes.
func (db *DB) TextSearch(ctx context.Context, userID, query string, limit int) (_ []models.SearchHit, err error) {
	done := timeOp("text_search")
	defer func() { done(err) }()

	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id, n.book_id, b.title, n.content, n.quote, n.page_ref,
		       snippet(notes_fts, 2, '<b>', '</b>', '...', 32)
		FROM notes_fts
		JOIN notes n ON n.id = notes_fts.note_id
		JOIN books b ON b.id = n.book_id
		WHERE notes_fts MATCH ? AND notes_fts.user_id = ?
		ORDER BY bm25(notes_fts)
		LIMIT ?
	`, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: text search: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}
