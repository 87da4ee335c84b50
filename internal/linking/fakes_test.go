package linking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

// fakeSearcher returns canned matches and records every query.
type fakeSearcher struct {
	matches    []models.Match
	bookOnly   map[string][]models.Match
	restricted error
	err        error
	queries    []MatchQuery
}

func (f *fakeSearcher) Match(_ context.Context, q MatchQuery) ([]models.Match, error) {
	f.queries = append(f.queries, q)
	if q.SameBookOnly {
		if f.restricted != nil {
			return nil, f.restricted
		}
		return append([]models.Match(nil), f.bookOnly[q.BookID]...), nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Match(nil), f.matches...), nil
}

type memEdges struct {
	mu        sync.Mutex
	rows      []models.NoteLink
	upsertErr error
}

func (m *memEdges) UpsertLinks(_ context.Context, links []models.NoteLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, l := range links {
		replaced := false
		for i, r := range m.rows {
			if r.UserID == l.UserID && r.Left == l.Left && r.Right == l.Right {
				m.rows[i] = l
				replaced = true
			}
		}
		if !replaced {
			m.rows = append(m.rows, l)
		}
	}
	return nil
}

func (m *memEdges) LinksForNote(_ context.Context, userID, noteID string, limit int) ([]models.NoteLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NoteLink
	for _, r := range m.rows {
		if r.UserID == userID && (r.Left == noteID || r.Right == noteID) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memEdges) DeleteLinksFrom(_ context.Context, userID, noteID, linkType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.UserID == userID && r.Left == noteID && r.LinkType == linkType {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return nil
}

func (m *memEdges) count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.UserID == userID {
			n++
		}
	}
	return n
}

type memNotes struct {
	notes map[string]models.Note
}

func newMemNotes(notes ...models.Note) *memNotes {
	m := &memNotes{notes: make(map[string]models.Note)}
	for _, n := range notes {
		m.notes[n.ID] = n
	}
	return m
}

func (m *memNotes) GetNote(_ context.Context, userID, noteID string) (*models.Note, error) {
	n, ok := m.notes[noteID]
	if !ok || n.UserID != userID {
		return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
	}
	return &n, nil
}

func (m *memNotes) NotesByIDs(_ context.Context, userID string, ids []string) ([]models.Note, error) {
	var out []models.Note
	for _, id := range ids {
		if n, ok := m.notes[id]; ok && n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

var errOffline = errors.New("connection refused")
