package notes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/concepts"
	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/testutil"
)

const user = "reader"

type fixture struct {
	svc    *Service
	embed  *testutil.Embedder
	chat   *testutil.Chat
	events *testutil.Events
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	f := &fixture{
		embed:  &testutil.Embedder{},
		chat:   &testutil.Chat{Reply: "Debt cycles repeat [note]."},
		events: &testutil.Events{},
	}
	linker := linking.NewService(linking.Deps{
		Embedder: f.embed,
		Searcher: db,
		Edges:    db,
		Notes:    db,
		Concepts: concepts.NewCache(64),
	}, linking.Config{})
	f.svc = NewService(Deps{
		Store:    db,
		Embedder: f.embed,
		Chat:     f.chat,
		Linker:   linker,
		Events:   f.events,
	})
	return f
}

func (f *fixture) book(t *testing.T, title string) *models.Book {
	t.Helper()
	b, err := f.svc.CreateBook(context.Background(), user, BookInput{Title: title})
	require.NoError(t, err)
	return b
}

func (f *fixture) note(t *testing.T, bookID, content string, sameBook bool) *models.Note {
	t.Helper()
	n, err := f.svc.CreateNote(context.Background(), user, NoteInput{BookID: bookID, Content: content, SameBookOnly: sameBook})
	require.NoError(t, err)
	return n
}

func relatedIDs(t *testing.T, f *fixture, noteID string) []string {
	t.Helper()
	rel, err := f.svc.RelatedNotes(context.Background(), user, noteID)
	require.NoError(t, err)
	ids := make([]string, len(rel))
	for i, r := range rel {
		ids[i] = r.ID
	}
	return ids
}

func TestCreateBook_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateBook(context.Background(), user, BookInput{Title: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	b, err := f.svc.CreateBook(context.Background(), user, BookInput{Title: " Debt ", Author: " Graeber "})
	require.NoError(t, err)
	assert.Equal(t, "Debt", b.Title)
	assert.Equal(t, "Graeber", b.Author)
}

func TestCreateNote_Validation(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	ctx := context.Background()

	cases := map[string]NoteInput{
		"missing book":    {Content: "x"},
		"missing content": {BookID: b.ID, Content: "  "},
		"long content":    {BookID: b.ID, Content: strings.Repeat("债", MaxContentLen+1)},
		"long quote":      {BookID: b.ID, Content: "x", Quote: strings.Repeat("q", MaxQuoteLen+1)},
		"long page ref":   {BookID: b.ID, Content: "x", PageRef: strings.Repeat("1", MaxPageRefLen+1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateNote(ctx, user, in)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
	assert.Zero(t, f.embed.Calls(), "invalid input must not reach the embedder")

	_, err := f.svc.CreateNote(ctx, user, NoteInput{BookID: b.ID, Content: strings.Repeat("债", MaxContentLen)})
	assert.NoError(t, err)
}

func TestCreateNote_UnknownBook(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateNote(context.Background(), user, NoteInput{BookID: "ghost", Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateNote_EmbedsAndLinks(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	a := f.note(t, b.ID, "credit cycles drive debt crises", false)
	c := f.note(t, b.ID, "debt crises follow credit cycles", false)
	g := f.note(t, b.ID, "gardening tomatoes in spring", false)

	assert.NotEmpty(t, c.Embedding)
	assert.Equal(t, []string{c.ID}, relatedIDs(t, f, a.ID))
	assert.Equal(t, []string{a.ID}, relatedIDs(t, f, c.ID))
	assert.Empty(t, relatedIDs(t, f, g.ID))

	rel, err := f.svc.RelatedNotes(context.Background(), user, a.ID)
	require.NoError(t, err)
	assert.Subset(t, rel[0].SharedConcepts, []string{"credit", "debt"})
	assert.Nil(t, rel[0].Embedding)

	assert.Equal(t, []string{
		"note.created", "links.updated",
		"note.created", "links.updated",
		"note.created", "links.updated",
	}, f.events.Kinds())
}

func TestCreateNote_SameBookOnly(t *testing.T) {
	f := newFixture(t)
	b1 := f.book(t, "Debt")
	b2 := f.book(t, "Sapiens")
	a := f.note(t, b1.ID, "credit cycles drive debt crises", false)
	other := f.note(t, b2.ID, "debt crises follow credit cycles", false)
	d := f.note(t, b1.ID, "credit cycles and debt crises", true)

	ids := relatedIDs(t, f, d.ID)
	assert.Contains(t, ids, a.ID)
	assert.NotContains(t, ids, other.ID)
}

func TestCreateNote_EmbeddingFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	f.embed.Err = errors.New("embeddings API error: 500")

	n, err := f.svc.CreateNote(context.Background(), user, NoteInput{BookID: b.ID, Content: "still saved"})
	require.NoError(t, err)
	assert.Nil(t, n.Embedding)

	got, err := f.svc.GetNote(context.Background(), user, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "still saved", got.Content)
	assert.Equal(t, []string{"note.created"}, f.events.Kinds())
}

func TestUpdateNote(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	n := f.note(t, b.ID, "credit cycles", false)

	updated, err := f.svc.UpdateNote(context.Background(), user, n.ID, NoteInput{Content: "debt crises", Quote: "q", PageRef: "7"}, "")
	require.NoError(t, err)
	assert.Equal(t, "debt crises", updated.Content)
	assert.Equal(t, b.ID, updated.BookID)
	assert.NotEmpty(t, updated.Embedding)

	_, err = f.svc.UpdateNote(context.Background(), user, n.ID, NoteInput{Content: ""}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.svc.UpdateNote(context.Background(), user, "ghost", NoteInput{Content: "x"}, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Contains(t, f.events.Kinds(), "note.updated")
}

func TestUpdateNote_IfMatch(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	n := f.note(t, b.ID, "credit cycles", false)
	stale := Version(n)

	updated, err := f.svc.UpdateNote(context.Background(), user, n.ID, NoteInput{Content: "v2"}, stale)
	require.NoError(t, err)
	assert.NotEqual(t, stale, Version(updated))

	_, err = f.svc.UpdateNote(context.Background(), user, n.ID, NoteInput{Content: "v3"}, stale)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestDeleteNote_RemovesRelations(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	a := f.note(t, b.ID, "credit cycles drive debt crises", false)
	c := f.note(t, b.ID, "debt crises follow credit cycles", false)
	require.NotEmpty(t, relatedIDs(t, f, a.ID))

	require.NoError(t, f.svc.DeleteNote(context.Background(), user, c.ID))
	assert.Empty(t, relatedIDs(t, f, a.ID))
	assert.ErrorIs(t, f.svc.DeleteNote(context.Background(), user, c.ID), apperr.ErrNotFound)
}

func TestRelink(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	a := f.note(t, b.ID, "credit cycles drive debt crises", false)
	f.note(t, b.ID, "debt crises follow credit cycles", false)

	res, err := f.svc.Relink(context.Background(), user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	_, err = f.svc.Relink(context.Background(), user, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcepts(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	n := f.note(t, b.ID, "The debt cycle repeats", false)

	got, err := f.svc.Concepts(context.Background(), user, n.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"debt", "cycle", "repeats"}, got)
}

func TestSemanticSearch(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	a := f.note(t, b.ID, "credit cycles drive debt crises", false)
	f.note(t, b.ID, "gardening tomatoes in spring", false)

	hits, err := f.svc.SemanticSearch(context.Background(), user, "  ")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = f.svc.SemanticSearch(context.Background(), user, "debt crises")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].NoteID)
	assert.Equal(t, "Debt", hits[0].BookTitle)
	assert.Greater(t, hits[0].Similarity, SemanticSearchThreshold)
}

func TestTextSearch(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	a := f.note(t, b.ID, "credit cycles drive debt crises", false)

	hits, err := f.svc.TextSearch(context.Background(), user, "credit", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].NoteID)

	hits, err = f.svc.TextSearch(context.Background(), user, "", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAsk(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Debt")
	a, err := f.svc.CreateNote(context.Background(), user, NoteInput{
		BookID: b.ID, Content: "credit cycles drive debt crises", Quote: "Debt is older than money", PageRef: "12",
	})
	require.NoError(t, err)

	ans, err := f.svc.Ask(context.Background(), user, "why do debt crises repeat?", 0)
	require.NoError(t, err)
	assert.Equal(t, "Debt cycles repeat [note].", ans.Answer)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, a.ID, ans.Sources[0].NoteID)
	assert.Equal(t, "Debt", ans.Sources[0].BookTitle)
	assert.Equal(t, "12", ans.Sources[0].PageRef)

	require.Len(t, f.chat.Messages, 1)
	msgs := f.chat.Messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "#1\nbook_title: Debt")
	assert.Contains(t, msgs[1].Content, "note_id: "+a.ID)
	assert.Contains(t, msgs[1].Content, "quote: Debt is older than money")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	f := newFixture(t)
	ans, err := f.svc.Ask(context.Background(), user, "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, ans.Answer)
	assert.Empty(t, ans.Sources)
	assert.Empty(t, f.chat.Messages)
}

func TestBuildContext(t *testing.T) {
	long := strings.Repeat("字", AskContentLimit+50)
	got := buildContext([]models.SearchHit{{NoteID: "n1", BookTitle: "T", Content: long, Similarity: 0.5}})
	assert.Contains(t, got, "page_ref: -")
	assert.Contains(t, got, "quote: -")
	assert.Contains(t, got, "content: "+strings.Repeat("字", AskContentLimit)+"\n")
	assert.NotContains(t, got, strings.Repeat("字", AskContentLimit+1))
}

func TestEnsureBook(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.EnsureBook(context.Background(), user, "Inbox")
	require.NoError(t, err)
	second, err := f.svc.EnsureBook(context.Background(), user, " Inbox ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	books, err := f.svc.ListBooks(context.Background(), user)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}
