package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/openai"
)

// Search and ask tuning.
const (
	SemanticSearchCount     = 10
	SemanticSearchThreshold = 0.2
	DefaultTextSearchLimit  = 20
	DefaultAskTopK          = 8
	AskContentLimit         = 1200
	AskTemperature          = 0.2
)

const askSystemPrompt = "You are the assistant of my reading-notes knowledge base. " +
	"Answer in the language of the question and rely on the provided notes first; " +
	"if you are not sure, say so plainly. After the answer, cite your sources by note_id and book_title."

// Source is a note an answer was grounded on.
type Source struct {
	NoteID     string  `json:"note_id"`
	BookID     string  `json:"book_id"`
	BookTitle  string  `json:"book_title"`
	PageRef    string  `json:"page_ref"`
	Similarity float64 `json:"similarity"`
}

// Answer is the result of Ask.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// SemanticSearch embeds q and returns the closest notes.
func (s *Service) SemanticSearch(ctx context.Context, userID, q string) ([]models.SearchHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.SearchHit{}, nil
	}
	return s.nearest(ctx, userID, q, SemanticSearchCount, SemanticSearchThreshold)
}

// TextSearch runs a full-text query over the user's notes.
func (s *Service) TextSearch(ctx context.Context, userID, q string, limit int) ([]models.SearchHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.SearchHit{}, nil
	}
	if limit <= 0 {
		limit = DefaultTextSearchLimit
	}
	return s.store.TextSearch(ctx, userID, q, limit)
}

// Ask answers a question from the user's closest notes.
func (s *Service) Ask(ctx context.Context, userID, question string, topK int) (*Answer, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return &Answer{Sources: []Source{}}, nil
	}
	if topK <= 0 {
		topK = DefaultAskTopK
	}
	if s.chat == nil {
		return nil, fmt.Errorf("notes: ask: no chat model configured")
	}

	hits, err := s.nearest(ctx, userID, q, topK, 0)
	if err != nil {
		return nil, err
	}

	answer, err := s.chat.Chat(ctx, []openai.Message{
		{Role: "system", Content: askSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Question: %s\n\nAvailable notes (answer only from these):\n%s", q, buildContext(hits))},
	}, AskTemperature)
	if err != nil {
		return nil, fmt.Errorf("notes: ask: %w", err)
	}

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{
			NoteID:     h.NoteID,
			BookID:     h.BookID,
			BookTitle:  h.BookTitle,
			PageRef:    h.PageRef,
			Similarity: h.Similarity,
		}
	}
	return &Answer{Answer: answer, Sources: sources}, nil
}

func (s *Service) nearest(ctx context.Context, userID, q string, count int, threshold float64) ([]models.SearchHit, error) {
	vector, err := s.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("notes: embed query: %w", err)
	}
	matches, err := s.store.Match(ctx, linking.MatchQuery{
		UserID:    userID,
		Vector:    vector,
		Count:     count,
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("notes: match: %w", err)
	}
	return s.hydrate(ctx, userID, matches)
}

// hydrate joins matches with their notes and book titles, keeping match order.
func (s *Service) hydrate(ctx context.Context, userID string, matches []models.Match) ([]models.SearchHit, error) {
	hits := []models.SearchHit{}
	if len(matches) == 0 {
		return hits, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.NoteID
	}
	notes, err := s.store.NotesByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	books, err := s.store.ListBooks(ctx, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	titles := make(map[string]string, len(books))
	for _, b := range books {
		titles[b.ID] = b.Title
	}

	for _, m := range matches {
		n, ok := byID[m.NoteID]
		if !ok {
			continue
		}
		hits = append(hits, models.SearchHit{
			NoteID:     n.ID,
			BookID:     n.BookID,
			BookTitle:  titles[n.BookID],
			Content:    n.Content,
			Quote:      n.Quote,
			PageRef:    n.PageRef,
			Similarity: m.Similarity,
		})
	}
	return hits, nil
}

func buildContext(hits []models.SearchHit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("#%d\nbook_title: %s\nnote_id: %s\npage_ref: %s\nquote: %s\ncontent: %s\nsimilarity: %v",
			i+1, h.BookTitle, h.NoteID, orDash(h.PageRef), orDash(h.Quote), truncateRunes(h.Content, AskContentLimit), h.Similarity)
	}
	return strings.Join(blocks, "\n\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
