// Package models defines the domain types for marginalia.
package models

import "time"

// LinkTypeSemantic tags edges produced by embedding similarity.
const LinkTypeSemantic = "semantic"

// Book is a collection that notes belong to.
type Book struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is a short piece of text attached to a book.
type Note struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	BookID       string    `json:"book_id"`
	Content      string    `json:"content"`
	Quote        string    `json:"quote,omitempty"`
	PageRef      string    `json:"page_ref,omitempty"`
	SameBookOnly bool      `json:"same_book_only"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NoteLink is an undirected edge between two notes of the same user.
// Left and Right are stored in canonical order (Left < Right).
type NoteLink struct {
	UserID    string    `json:"user_id"`
	Left      string    `json:"left_note_id"`
	Right     string    `json:"right_note_id"`
	Score     float64   `json:"score"`
	LinkType  string    `json:"link_type"`
	CreatedAt time.Time `json:"created_at"`
}

// RelatedNote is a note annotated with its relevance to another note.
type RelatedNote struct {
	Note
	Score          float64  `json:"score"`
	SharedConcepts []string `json:"shared_concepts"`
}

// Match is a single similarity hit.
type Match struct {
	NoteID     string  `json:"note_id"`
	Similarity float64 `json:"similarity"`
}

// SearchHit is a note returned by semantic or text search.
type SearchHit struct {
	NoteID     string  `json:"note_id"`
	BookID     string  `json:"book_id"`
	BookTitle  string  `json:"book_title"`
	Content    string  `json:"content"`
	Quote      string  `json:"quote,omitempty"`
	PageRef    string  `json:"page_ref,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
}
