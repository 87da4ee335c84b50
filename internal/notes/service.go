// Package notes coordinates books, notes, embeddings and linking.
package notes

import (
	"context"
	"log/slog"

	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/openai"
)

// Store is the persistence the service needs.
type Store interface {
	CreateBook(ctx context.Context, b *models.Book) error
	GetBook(ctx context.Context, userID, bookID string) (*models.Book, error)
	FindBookByTitle(ctx context.Context, userID, title string) (*models.Book, error)
	ListBooks(ctx context.Context, userID string) ([]models.Book, error)
	DeleteBook(ctx context.Context, userID, bookID string) error

	InsertNote(ctx context.Context, n *models.Note) error
	UpdateNote(ctx context.Context, n *models.Note) error
	SetEmbedding(ctx context.Context, userID, noteID string, vector []float32) error
	GetNote(ctx context.Context, userID, noteID string) (*models.Note, error)
	NotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error)
	NotesByBook(ctx context.Context, userID, bookID string) ([]models.Note, error)
	DeleteNote(ctx context.Context, userID, noteID string) error

	Match(ctx context.Context, q linking.MatchQuery) ([]models.Match, error)
	TextSearch(ctx context.Context, userID, query string, limit int) ([]models.SearchHit, error)
}

// Chatter answers chat completions.
type Chatter interface {
	Chat(ctx context.Context, messages []openai.Message, temperature float64) (string, error)
}

// Publisher receives change notifications.
type Publisher interface {
	PublishNoteEvent(userID, kind, noteID string)
	PublishLinksEvent(userID, noteID string, inserted int)
}

type noopPublisher struct{}

func (noopPublisher) PublishNoteEvent(string, string, string) {}
func (noopPublisher) PublishLinksEvent(string, string, int)   {}

// Service implements the note-taking operations.
type Service struct {
	store    Store
	embedder linking.Embedder
	chat     Chatter
	linker   *linking.Service
	events   Publisher
	logger   *slog.Logger
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Store    Store
	Embedder linking.Embedder
	Chat     Chatter
	Linker   *linking.Service
	Events   Publisher
	Logger   *slog.Logger
}

// NewService creates a new note service.
func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		embedder: d.Embedder,
		chat:     d.Chat,
		linker:   d.Linker,
		events:   d.Events,
		logger:   d.Logger,
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}
