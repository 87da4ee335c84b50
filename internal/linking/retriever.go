package linking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/marginalia/internal/models"
)

// Retriever fetches candidate neighbours for a note.
type Retriever struct {
	search Searcher
	notes  NoteStore
	logger *slog.Logger
}

// NewRetriever creates a Retriever. A nil logger uses slog.Default.
func NewRetriever(search Searcher, notes NoteStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{search: search, notes: notes, logger: logger}
}

// Candidates returns up to k+CandidateMargin neighbours of noteID scoring at
// least threshold, never including noteID itself.
//
// With sameBook set, the query is narrowed to the note's book when the book
// can be resolved and the searcher supports the filter; otherwise it runs
// unrestricted.
func (r *Retriever) Candidates(ctx context.Context, userID, noteID string, vector []float32, k int, threshold float64, sameBook bool) ([]models.Match, error) {
	q := MatchQuery{
		UserID:    userID,
		Vector:    vector,
		Count:     k + CandidateMargin,
		Threshold: threshold,
	}

	if sameBook {
		if bookID := r.bookOf(ctx, userID, noteID); bookID != "" {
			restricted := q
			restricted.BookID = bookID
			restricted.SameBookOnly = true

			matches, err := r.search.Match(ctx, restricted)
			switch {
			case err == nil:
				return excludeNote(matches, noteID), nil
			case !errors.Is(err, ErrFilterUnsupported):
				return nil, &SearchError{Err: err}
			}
			r.logger.Debug("same-book filter unsupported, searching all notes",
				slog.String("note_id", noteID))
		}
	}

	matches, err := r.search.Match(ctx, q)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	return excludeNote(matches, noteID), nil
}

func (r *Retriever) bookOf(ctx context.Context, userID, noteID string) string {
	n, err := r.notes.GetNote(ctx, userID, noteID)
	if err != nil || n == nil {
		r.logger.Debug("book lookup failed, searching all notes",
			slog.String("note_id", noteID))
		return ""
	}
	return n.BookID
}

func excludeNote(matches []models.Match, noteID string) []models.Match {
	out := matches[:0:0]
	for _, m := range matches {
		if m.NoteID == "" || m.NoteID == noteID {
			continue
		}
		out = append(out, m)
	}
	return out
}
