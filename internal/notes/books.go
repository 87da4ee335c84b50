package notes

import (
	"context"
	"errors"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

// CreateBook validates and stores a new book.
func (s *Service) CreateBook(ctx context.Context, userID string, in BookInput) (*models.Book, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	b := &models.Book{UserID: userID, Title: in.Title, Author: in.Author, Source: in.Source}
	if err := s.store.CreateBook(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBook returns one book.
func (s *Service) GetBook(ctx context.Context, userID, bookID string) (*models.Book, error) {
	return s.store.GetBook(ctx, userID, bookID)
}

// ListBooks returns the user's books, newest first.
func (s *Service) ListBooks(ctx context.Context, userID string) ([]models.Book, error) {
	return s.store.ListBooks(ctx, userID)
}

// DeleteBook removes a book and all of its notes.
func (s *Service) DeleteBook(ctx context.Context, userID, bookID string) error {
	return s.store.DeleteBook(ctx, userID, bookID)
}

// EnsureBook returns the user's book with the given title, creating it when
// it does not exist yet.
func (s *Service) EnsureBook(ctx context.Context, userID, title string) (*models.Book, error) {
	title = strings.TrimSpace(title)
	b, err := s.store.FindBookByTitle(ctx, userID, title)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return s.CreateBook(ctx, userID, BookInput{Title: title})
}
