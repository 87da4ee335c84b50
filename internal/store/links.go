package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/marginalia/internal/models"
)

// UpsertLinks inserts links or overwrites the score and type of existing
// rows with the same (user, left, right) key.
func (db *DB) UpsertLinks(ctx context.Context, links []models.NoteLink) (err error) {
	done := timeOp("upsert_links")
	defer func() { done(err) }()

	if len(links) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO note_links (user_id, left_note_id, right_note_id, score, link_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, left_note_id, right_note_id) DO UPDATE SET
			score     = excluded.score,
			link_type = excluded.link_type
	`)
	if err != nil {
		return fmt.Errorf("store: prepare link upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, l := range links {
		linkType := l.LinkType
		if linkType == "" {
			linkType = models.LinkTypeSemantic
		}
		if _, err := stmt.ExecContext(ctx, l.UserID, l.Left, l.Right, l.Score, linkType, now); err != nil {
			return fmt.Errorf("store: upsert link: %w", err)
		}
	}
	return tx.Commit()
}

// LinksForNote returns links where the note is either endpoint, best score first.
func (db *DB) LinksForNote(ctx context.Context, userID, noteID string, limit int) (_ []models.NoteLink, err error) {
	done := timeOp("links_for_note")
	defer func() { done(err) }()

	if limit <= 0 {
		limit = 30
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, left_note_id, right_note_id, score, link_type, created_at
		FROM note_links
		WHERE user_id = ? AND (left_note_id = ? OR right_note_id = ?)
		ORDER BY score DESC
		LIMIT ?
	`, userID, noteID, noteID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: links for note: %w", err)
	}
	defer rows.Close()

	var out []models.NoteLink
	for rows.Next() {
		var l models.NoteLink
		if err := rows.Scan(&l.UserID, &l.Left, &l.Right, &l.Score, &l.LinkType, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLinksFrom removes links of linkType where the note is the left endpoint.
func (db *DB) DeleteLinksFrom(ctx context.Context, userID, noteID, linkType string) (err error) {
	done := timeOp("delete_links")
	defer func() { done(err) }()

	_, err = db.conn.ExecContext(ctx,
		`DELETE FROM note_links WHERE user_id = ? AND left_note_id = ? AND link_type = ?`,
		userID, noteID, linkType)
	if err != nil {
		return fmt.Errorf("store: delete links: %w", err)
	}
	return nil
}
