package linking

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/marginalia/internal/concepts"
	"github.com/starford/marginalia/internal/models"
)

// GetRelatedNotes returns the notes linked to noteID, best score first, each
// annotated with the concepts it shares with the source note.
func (s *Service) GetRelatedNotes(ctx context.Context, userID, noteID string) ([]models.RelatedNote, error) {
	results := []models.RelatedNote{}

	src, err := s.notes.GetNote(ctx, userID, noteID)
	if err != nil {
		return nil, fmt.Errorf("linking: load note %s: %w", noteID, err)
	}
	srcConcepts := s.concepts.ForNote(src.ID, src.Content, src.Quote)

	links, err := s.edges.LinksForNote(ctx, userID, noteID, s.cfg.EdgeScanLimit)
	if err != nil {
		return nil, fmt.Errorf("linking: load links for %s: %w", noteID, err)
	}
	if len(links) == 0 {
		return results, nil
	}

	best := make(map[string]float64)
	var ids []string
	for _, l := range links {
		other := Pair{Left: l.Left, Right: l.Right}.Other(noteID)
		if other == noteID || other == "" {
			continue
		}
		prev, ok := best[other]
		if !ok {
			ids = append(ids, other)
		}
		if !ok || l.Score > prev {
			best[other] = l.Score
		}
	}

	sort.SliceStable(ids, func(i, j int) bool {
		return best[ids[i]] > best[ids[j]]
	})
	if len(ids) > s.cfg.RelatedLimit {
		ids = ids[:s.cfg.RelatedLimit]
	}
	if len(ids) == 0 {
		return results, nil
	}

	notes, err := s.notes.NotesByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("linking: load related notes for %s: %w", noteID, err)
	}
	byID := make(map[string]models.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}

	for _, id := range ids {
		n, ok := byID[id]
		if !ok {
			continue
		}
		related := s.concepts.ForNote(n.ID, n.Content, n.Quote)
		n.Embedding = nil
		results = append(results, models.RelatedNote{
			Note:           n,
			Score:          best[id],
			SharedConcepts: concepts.Shared(srcConcepts, related, concepts.SharedLimit),
		})
	}
	return results, nil
}

// Concepts returns the extracted concepts of a note.
func (s *Service) Concepts(ctx context.Context, userID, noteID string) ([]string, error) {
	n, err := s.notes.GetNote(ctx, userID, noteID)
	if err != nil {
		return nil, fmt.Errorf("linking: load note %s: %w", noteID, err)
	}
	return s.concepts.ForNote(n.ID, n.Content, n.Quote), nil
}
