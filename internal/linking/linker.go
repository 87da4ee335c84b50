package linking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/marginalia/internal/concepts"
	"github.com/starford/marginalia/internal/metrics"
	"github.com/starford/marginalia/internal/models"
)

// LinkParams describes one linking run for a note.
type LinkParams struct {
	NoteID  string
	Content string
	Quote   string
	PageRef string
	// MatchCount and Threshold fall back to the service config when zero.
	MatchCount   int
	Threshold    float64
	SameBookOnly bool
	// Vector skips the embedding call when the caller already has one.
	Vector []float32
}

// LinkResult reports how many edges a run upserted.
type LinkResult struct {
	Inserted int `json:"inserted"`
}

// Service links notes and reads their related notes.
type Service struct {
	embedder  Embedder
	retriever *Retriever
	edges     EdgeStore
	notes     NoteStore
	concepts  *concepts.Cache
	cfg       Config
	logger    *slog.Logger
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Embedder Embedder
	Searcher Searcher
	Edges    EdgeStore
	Notes    NoteStore
	Concepts *concepts.Cache
	Logger   *slog.Logger
}

// NewService creates a linking service.
func NewService(d Deps, cfg Config) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:  d.Embedder,
		retriever: NewRetriever(d.Searcher, d.Notes, logger),
		edges:     d.Edges,
		notes:     d.Notes,
		concepts:  d.Concepts,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// EmbeddingInput composes the text a note is embedded from.
func EmbeddingInput(content, quote, pageRef string) string {
	parts := make([]string, 0, 3)
	if content != "" {
		parts = append(parts, content)
	}
	if quote != "" {
		parts = append(parts, "Quote: "+quote)
	}
	if pageRef != "" {
		parts = append(parts, "Page: "+pageRef)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// AutoLinkNote embeds the note, finds its nearest neighbours and upserts at
// most MatchCount semantic edges, one per unordered pair. Re-running it
// against the same neighbours rewrites the same rows.
func (s *Service) AutoLinkNote(ctx context.Context, userID string, p LinkParams) (res LinkResult, err error) {
	done := metrics.TimeCall("autolink")
	defer func() { done(err == nil) }()

	if p.MatchCount <= 0 {
		p.MatchCount = s.cfg.MatchCount
	}
	if p.Threshold <= 0 {
		p.Threshold = s.cfg.Threshold
	}

	text := EmbeddingInput(p.Content, p.Quote, p.PageRef)
	if text == "" {
		return LinkResult{}, ErrEmptyEmbeddingInput
	}

	vector := p.Vector
	if len(vector) == 0 {
		if vector, err = s.embedder.Embed(ctx, text); err != nil {
			return LinkResult{}, fmt.Errorf("linking: embed note %s: %w", p.NoteID, err)
		}
	}

	candidates, err := s.retriever.Candidates(ctx, userID, p.NoteID, vector, p.MatchCount, p.Threshold, p.SameBookOnly)
	if err != nil {
		return LinkResult{}, err
	}

	top := topPairs(p.NoteID, candidates, p.Threshold, p.MatchCount)
	if len(top) == 0 {
		return LinkResult{}, nil
	}

	rows := make([]models.NoteLink, len(top))
	for i, e := range top {
		rows[i] = models.NoteLink{
			UserID:   userID,
			Left:     e.pair.Left,
			Right:    e.pair.Right,
			Score:    e.score,
			LinkType: models.LinkTypeSemantic,
		}
	}
	if err := s.edges.UpsertLinks(ctx, rows); err != nil {
		return LinkResult{}, fmt.Errorf("linking: upsert links for %s: %w", p.NoteID, err)
	}
	metrics.Default().AddLinksWritten(len(rows))

	s.logger.Debug("note linked",
		slog.String("note_id", p.NoteID),
		slog.Int("inserted", len(rows)))
	return LinkResult{Inserted: len(rows)}, nil
}

// Relink drops the semantic edges where the note is the canonical left
// endpoint and builds a fresh set. The two steps are not atomic; a failure
// in between leaves the note without those edges until the next run.
func (s *Service) Relink(ctx context.Context, userID string, p LinkParams) (LinkResult, error) {
	if err := s.edges.DeleteLinksFrom(ctx, userID, p.NoteID, models.LinkTypeSemantic); err != nil {
		return LinkResult{}, fmt.Errorf("linking: delete old links for %s: %w", p.NoteID, err)
	}
	return s.AutoLinkNote(ctx, userID, p)
}

type scoredPair struct {
	pair  Pair
	score float64
}

// topPairs dedupes candidates into canonical pairs, keeping the best score
// per pair, and returns the best limit pairs at or above threshold.
func topPairs(noteID string, candidates []models.Match, threshold float64, limit int) []scoredPair {
	seen := make(map[string]int)
	var pairs []scoredPair
	for _, c := range candidates {
		if c.NoteID == noteID || c.Similarity < threshold {
			continue
		}
		pair := NormalizePair(noteID, c.NoteID)
		if i, ok := seen[pair.Key()]; ok {
			if c.Similarity > pairs[i].score {
				pairs[i].score = c.Similarity
			}
			continue
		}
		seen[pair.Key()] = len(pairs)
		pairs = append(pairs, scoredPair{pair: pair, score: c.Similarity})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
