package api

import (
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
)

// CreateBookRequest is the request body for creating a book.
type CreateBookRequest = notes.BookInput

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest = notes.NoteInput

// UpdateNoteRequest is the request body for updating a note. The book is
// fixed at creation and book_id is ignored.
type UpdateNoteRequest = notes.NoteInput

// AskRequest is the request body for POST /ask.
type AskRequest struct {
	Question string `json:"question" example:"Why do debt crises repeat?" validate:"required"`
	TopK     int    `json:"top_k,omitempty" example:"8"`
}

// BookListResponse wraps book listings.
type BookListResponse struct {
	Books []models.Book `json:"books" validate:"required"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
}

// RelatedResponse wraps the related notes of a note.
type RelatedResponse struct {
	Related []models.RelatedNote `json:"related" validate:"required"`
}

// ConceptsResponse wraps the concepts of a note.
type ConceptsResponse struct {
	Concepts []string `json:"concepts" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Mode    string             `json:"mode" example:"semantic"`
	Results []models.SearchHit `json:"results" validate:"required"`
}
