package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/marginalia/internal/concepts"
	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/testutil"
)

// testEnv wires a real SQLite store and linker behind the router. With a
// non-empty token the router runs in token mode and maps it to "alice".
func testEnv(t *testing.T, token string) http.Handler {
	t.Helper()
	db := testutil.TestDB(t)
	embed := &testutil.Embedder{}
	linker := linking.NewService(linking.Deps{
		Embedder: embed,
		Searcher: db,
		Edges:    db,
		Notes:    db,
		Concepts: concepts.NewCache(32),
	}, linking.Config{})
	svc := notes.NewService(notes.Deps{
		Store:    db,
		Embedder: embed,
		Chat:     &testutil.Chat{Reply: "From your notes."},
		Linker:   linker,
	})

	auth := Auth{DefaultUser: "local"}
	if token != "" {
		auth = Auth{Enabled: true, Tokens: map[string]string{token: "alice"}}
	}
	return NewRouter(svc, auth, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createBook(t *testing.T, router http.Handler, title string, headers ...string) models.Book {
	t.Helper()
	w := do(t, router, http.MethodPost, "/books", map[string]string{"title": title}, headers...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Book](t, w)
}

func createNote(t *testing.T, router http.Handler, bookID, content string, headers ...string) models.Note {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", map[string]any{"book_id": bookID, "content": content}, headers...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Note](t, w)
}

func TestBooksCRUD(t *testing.T) {
	router := testEnv(t, "")
	b := createBook(t, router, "Principles")
	assert.Equal(t, "local", b.UserID)

	w := do(t, router, http.MethodGet, "/books", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[BookListResponse](t, w).Books, 1)

	w = do(t, router, http.MethodGet, "/books/"+b.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Principles", decode[models.Book](t, w).Title)

	w = do(t, router, http.MethodDelete, "/books/"+b.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/books/"+b.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBook_Invalid(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/books", map[string]string{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateNote_UnknownBook(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/notes", map[string]any{"book_id": "missing", "content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNoteLifecycle(t *testing.T) {
	router := testEnv(t, "")
	b := createBook(t, router, "Big Debt Crises")
	n := createNote(t, router, b.ID, "Debt cycles expand when credit grows faster than income")

	w := do(t, router, http.MethodGet, "/notes/"+n.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	update := map[string]any{"content": "Debt cycles end in deleveraging"}
	w = do(t, router, http.MethodPut, "/notes/"+n.ID, update, "If-Match", `"stale"`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPut, "/notes/"+n.ID, update, "If-Match", etag)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Debt cycles end in deleveraging", decode[models.Note](t, w).Content)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))

	w = do(t, router, http.MethodGet, "/books/"+b.ID+"/notes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[NoteListResponse](t, w).Notes, 1)

	w = do(t, router, http.MethodDelete, "/notes/"+n.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/notes/"+n.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRelatedAndConcepts(t *testing.T) {
	router := testEnv(t, "")
	b := createBook(t, router, "Economics")
	a := createNote(t, router, b.ID, "central bank interest rates control credit cycles")
	c := createNote(t, router, b.ID, "interest rates from the central bank shape credit cycles")

	w := do(t, router, http.MethodGet, "/notes/"+c.ID+"/related", nil)
	require.Equal(t, http.StatusOK, w.Code)
	related := decode[RelatedResponse](t, w).Related
	require.Len(t, related, 1)
	assert.Equal(t, a.ID, related[0].ID)
	assert.NotEmpty(t, related[0].SharedConcepts)

	w = do(t, router, http.MethodGet, "/notes/"+a.ID+"/concepts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[ConceptsResponse](t, w).Concepts, "credit")

	w = do(t, router, http.MethodPost, "/notes/"+a.ID+"/relink", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[linking.LinkResult](t, w).Inserted)

	w = do(t, router, http.MethodPost, "/notes/missing/relink", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	router := testEnv(t, "")
	b := createBook(t, router, "Economics")
	n := createNote(t, router, b.ID, "inflation erodes savings")
	createNote(t, router, b.ID, "gardening tips for tomatoes")

	w := do(t, router, http.MethodGet, "/search?q=inflation+savings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[SearchResponse](t, w)
	assert.Equal(t, "semantic", res.Mode)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, n.ID, res.Results[0].NoteID)
	assert.Equal(t, "Economics", res.Results[0].BookTitle)

	w = do(t, router, http.MethodGet, "/search?q=tomatoes&mode=text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[SearchResponse](t, w)
	assert.Equal(t, "text", res.Mode)
	assert.Len(t, res.Results, 1)

	w = do(t, router, http.MethodGet, "/search?q=x&mode=fuzzy", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAsk(t *testing.T) {
	router := testEnv(t, "")
	b := createBook(t, router, "Economics")
	n := createNote(t, router, b.ID, "inflation erodes savings")

	w := do(t, router, http.MethodPost, "/ask", AskRequest{Question: "what does inflation do to savings?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ans := decode[notes.Answer](t, w)
	assert.Equal(t, "From your notes.", ans.Answer)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, n.ID, ans.Sources[0].NoteID)
}

func TestAuth_TokenMode(t *testing.T) {
	router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/books", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/books", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	b := createBook(t, router, "Mine", "Authorization", "Bearer secret")
	assert.Equal(t, "alice", b.UserID)
}

func TestAuth_HeaderIsolatesUsers(t *testing.T) {
	router := testEnv(t, "")
	b := createBook(t, router, "Private", UserHeader, "bob")
	n := createNote(t, router, b.ID, "only bob reads this", UserHeader, "bob")

	w := do(t, router, http.MethodGet, "/notes/"+n.ID, nil, UserHeader, "carol")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/books", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[BookListResponse](t, w).Books)

	w = do(t, router, http.MethodGet, "/notes/"+n.ID, nil, UserHeader, "bob")
	assert.Equal(t, http.StatusOK, w.Code)
}
