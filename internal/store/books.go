package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

const bookColumns = `id, user_id, title, author, source, created_at, updated_at`

// CreateBook inserts a book, assigning an id and timestamps when unset.
func (db *DB) CreateBook(ctx context.Context, b *models.Book) (err error) {
	done := timeOp("create_book")
	defer func() { done(err) }()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO books (id, user_id, title, author, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.UserID, b.Title, b.Author, b.Source, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create book: %w", err)
	}
	return nil
}

// GetBook returns a book owned by userID.
func (db *DB) GetBook(ctx context.Context, userID, bookID string) (_ *models.Book, err error) {
	done := timeOp("get_book")
	defer func() { done(err) }()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND user_id = ?`, bookID, userID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: book %s: %w", bookID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get book: %w", err)
	}
	return b, nil
}

// FindBookByTitle returns the user's oldest book with the given title.
func (db *DB) FindBookByTitle(ctx context.Context, userID, title string) (_ *models.Book, err error) {
	done := timeOp("find_book")
	defer func() { done(err) }()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id = ? AND title = ? ORDER BY created_at LIMIT 1`,
		userID, title)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: book %q: %w", title, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find book: %w", err)
	}
	return b, nil
}

// ListBooks returns the user's books, newest first.
func (db *DB) ListBooks(ctx context.Context, userID string) (_ []models.Book, err error) {
	done := timeOp("list_books")
	defer func() { done(err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list books: %w", err)
	}
	defer rows.Close()

	out := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan book: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// DeleteBook removes a book together with its notes and every link that
// touches one of those notes.
func (db *DB) DeleteBook(ctx context.Context, userID, bookID string) (err error) {
	done := timeOp("delete_book")
	defer func() { done(err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	noteIDs, err := bookNoteIDs(ctx, tx, userID, bookID)
	if err != nil {
		return err
	}
	for _, id := range noteIDs {
		if err := deleteNoteTx(ctx, tx, userID, id); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ? AND user_id = ?`, bookID, userID)
	if err != nil {
		return fmt.Errorf("store: delete book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: book %s: %w", bookID, apperr.ErrNotFound)
	}
	return tx.Commit()
}

func bookNoteIDs(ctx context.Context, tx *sql.Tx, userID, bookID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM notes WHERE book_id = ? AND user_id = ?`, bookID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: book notes: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanBook(s scanner) (*models.Book, error) {
	var b models.Book
	if err := s.Scan(&b.ID, &b.UserID, &b.Title, &b.Author, &b.Source, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
