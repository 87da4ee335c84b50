package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

const noteColumns = `id, user_id, book_id, content, quote, page_ref, same_book_only, embedding, created_at, updated_at`

// InsertNote stores a new note in one of the user's books.
func (db *DB) InsertNote(ctx context.Context, n *models.Note) (err error) {
	done := timeOp("insert_note")
	defer func() { done(err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := ensureBook(ctx, tx, n.UserID, n.BookID); err != nil {
		return err
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, book_id, content, quote, page_ref, same_book_only, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.BookID, n.Content, n.Quote, n.PageRef, n.SameBookOnly,
		encodeVector(n.Embedding), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insert note: %w", err)
	}
	if err := ftsUpsert(ctx, tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateNote rewrites the editable fields of a note. The stored embedding is
// cleared because it no longer matches the text.
func (db *DB) UpdateNote(ctx context.Context, n *models.Note) (err error) {
	done := timeOp("update_note")
	defer func() { done(err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n.UpdatedAt = time.Now().UTC()
	n.Embedding = nil
	res, err := tx.ExecContext(ctx, `
		UPDATE notes
		SET content = ?, quote = ?, page_ref = ?, same_book_only = ?, embedding = NULL, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, n.Content, n.Quote, n.PageRef, n.SameBookOnly, n.UpdatedAt, n.ID, n.UserID)
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("store: note %s: %w", n.ID, apperr.ErrNotFound)
	}
	if err := ftsUpsert(ctx, tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// SetEmbedding stores the embedding of a note.
func (db *DB) SetEmbedding(ctx context.Context, userID, noteID string, vector []float32) (err error) {
	done := timeOp("set_embedding")
	defer func() { done(err) }()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE notes SET embedding = ? WHERE id = ? AND user_id = ?`,
		encodeVector(vector), noteID, userID)
	if err != nil {
		return fmt.Errorf("store: set embedding: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("store: note %s: %w", noteID, apperr.ErrNotFound)
	}
	return nil
}

// GetNote returns a note owned by userID.
func (db *DB) GetNote(ctx context.Context, userID, noteID string) (_ *models.Note, err error) {
	done := timeOp("get_note")
	defer func() { done(err) }()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, noteID, userID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: note %s: %w", noteID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// NotesByIDs batch-loads notes. Unknown ids and notes of other users are
// silently skipped; order is unspecified.
func (db *DB) NotesByIDs(ctx context.Context, userID string, ids []string) (_ []models.Note, err error) {
	done := timeOp("notes_by_ids")
	defer func() { done(err) }()

	if len(ids) == 0 {
		return []models.Note{}, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: notes by ids: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// NotesByBook returns the notes of one book, newest first.
func (db *DB) NotesByBook(ctx context.Context, userID, bookID string) (_ []models.Note, err error) {
	done := timeOp("notes_by_book")
	defer func() { done(err) }()

	var exists int
	err = db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM books WHERE id = ? AND user_id = ?`, bookID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: book %s: %w", bookID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: notes by book: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? AND book_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("store: notes by book: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// DeleteNote removes a note and every link that touches it.
func (db *DB) DeleteNote(ctx context.Context, userID, noteID string) (err error) {
	done := timeOp("delete_note")
	defer func() { done(err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteNoteTx(ctx, tx, userID, noteID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteNoteTx(ctx context.Context, tx *sql.Tx, userID, noteID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, noteID, userID)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: note %s: %w", noteID, apperr.ErrNotFound)
	}
	ftsDelete(ctx, tx, noteID)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM note_links
		WHERE user_id = ? AND (left_note_id = ? OR right_note_id = ?)
	`, userID, noteID, noteID); err != nil {
		return fmt.Errorf("store: delete note links: %w", err)
	}
	return nil
}

func ensureBook(ctx context.Context, tx *sql.Tx, userID, bookID string) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM books WHERE id = ? AND user_id = ?`, bookID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: book %s: %w", bookID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: check book: %w", err)
	}
	return nil
}

func scanNote(s scanner) (*models.Note, error) {
	var (
		n   models.Note
		emb []byte
	)
	if err := s.Scan(&n.ID, &n.UserID, &n.BookID, &n.Content, &n.Quote, &n.PageRef,
		&n.SameBookOnly, &emb, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Embedding = decodeVector(emb)
	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
