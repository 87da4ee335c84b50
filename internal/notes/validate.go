package notes

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marginalia/internal/apperr"
)

// Length limits, counted in runes.
const (
	MaxContentLen = 1200
	MaxQuoteLen   = 600
	MaxPageRefLen = 40
	MaxBookTitle  = 300
	MaxBookAuthor = 200
	MaxBookSource = 500
)

// BookInput is the user-supplied part of a book.
type BookInput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Source string `json:"source"`
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Source = strings.TrimSpace(in.Source)
}

// Validate checks the book fields.
func (in *BookInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(0, MaxBookTitle)),
		validation.Field(&in.Author, validation.RuneLength(0, MaxBookAuthor)),
		validation.Field(&in.Source, validation.RuneLength(0, MaxBookSource)),
	)
}

// NoteInput is the user-supplied part of a note.
type NoteInput struct {
	BookID       string `json:"book_id"`
	Content      string `json:"content"`
	Quote        string `json:"quote"`
	PageRef      string `json:"page_ref"`
	SameBookOnly bool   `json:"same_book_only"`
}

func (in *NoteInput) normalize() {
	in.BookID = strings.TrimSpace(in.BookID)
	in.Content = strings.TrimSpace(in.Content)
	in.Quote = strings.TrimSpace(in.Quote)
	in.PageRef = strings.TrimSpace(in.PageRef)
}

// Validate checks the note fields.
func (in *NoteInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.BookID, validation.Required),
		validation.Field(&in.Content, validation.Required, validation.RuneLength(0, MaxContentLen)),
		validation.Field(&in.Quote, validation.RuneLength(0, MaxQuoteLen)),
		validation.Field(&in.PageRef, validation.RuneLength(0, MaxPageRefLen)),
	)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
}
