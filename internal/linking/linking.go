// Package linking builds and reads the undirected "related notes" graph.
//
// Edges are stored once per unordered pair in canonical order (see
// NormalizePair). Direction is never stored; readers resolve the other
// endpoint relative to the note they start from.
package linking

import (
	"context"
	"errors"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

// Defaults for a linking run and for the related-notes view.
const (
	DefaultMatchCount    = 5
	DefaultThreshold     = 0.35
	DefaultRelatedLimit  = 10
	DefaultEdgeScanLimit = 30

	// CandidateMargin is added to every similarity request. Candidates may
	// include the source note itself or several hits for one pair.
	CandidateMargin = 8
)

var (
	// ErrEmptyEmbeddingInput is returned before any external call when a
	// note has no text to embed.
	ErrEmptyEmbeddingInput = errors.New("linking: empty text for embedding")

	// ErrFilterUnsupported is what a Searcher returns when it cannot apply
	// the same-book filter. The retriever recovers from it.
	ErrFilterUnsupported = apperr.ErrUnsupported
)

// SearchError wraps a non-recoverable similarity search failure.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return "linking: similarity search: " + e.Err.Error()
}

func (e *SearchError) Unwrap() error { return e.Err }

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MatchQuery is a nearest-neighbour request scoped to one user.
type MatchQuery struct {
	UserID    string
	Vector    []float32
	Count     int
	Threshold float64
	// BookID restricts matches to one book when SameBookOnly is set.
	BookID       string
	SameBookOnly bool
}

// Searcher runs nearest-neighbour queries over note embeddings.
type Searcher interface {
	Match(ctx context.Context, q MatchQuery) ([]models.Match, error)
}

// EdgeStore persists note links.
type EdgeStore interface {
	// UpsertLinks inserts or overwrites rows keyed by (user, left, right).
	UpsertLinks(ctx context.Context, links []models.NoteLink) error
	// LinksForNote returns edges where the note is either endpoint, best first.
	LinksForNote(ctx context.Context, userID, noteID string, limit int) ([]models.NoteLink, error)
	// DeleteLinksFrom removes edges of linkType where the note is the left endpoint.
	DeleteLinksFrom(ctx context.Context, userID, noteID, linkType string) error
}

// NoteStore reads notes scoped to their owner.
type NoteStore interface {
	GetNote(ctx context.Context, userID, noteID string) (*models.Note, error)
	NotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error)
}

// Config tunes linking runs and the related-notes view.
type Config struct {
	MatchCount    int
	Threshold     float64
	RelatedLimit  int
	EdgeScanLimit int
}

func (c Config) withDefaults() Config {
	if c.MatchCount <= 0 {
		c.MatchCount = DefaultMatchCount
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.RelatedLimit <= 0 {
		c.RelatedLimit = DefaultRelatedLimit
	}
	if c.EdgeScanLimit <= 0 {
		c.EdgeScanLimit = DefaultEdgeScanLimit
	}
	return c
}
