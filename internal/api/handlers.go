package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
)

// Handler holds API route handlers.
type Handler struct {
	svc *notes.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *notes.Service) *Handler {
	return &Handler{svc: svc}
}

// ListBooks handles GET /books.
//
//	@Summary		List the caller's books, newest first
//	@Tags			books
//	@Produce		json
//	@Success		200	{object}	BookListResponse
//	@Security		BearerAuth
//	@Router			/books [get]
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.ListBooks(r.Context(), UserFromRequest(r))
	if err != nil {
		writeError(w, r, "list books", err)
		return
	}
	writeJSON(w, http.StatusOK, BookListResponse{Books: books})
}

// CreateBook handles POST /books.
//
//	@Summary		Create a book
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateBookRequest	true	"Book to create"
//	@Success		201		{object}	models.Book
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books [post]
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := h.svc.CreateBook(r.Context(), UserFromRequest(r), req)
	if err != nil {
		writeError(w, r, "create book", err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// GetBook handles GET /books/{id}.
//
//	@Summary		Get a book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	models.Book
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id} [get]
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.svc.GetBook(r.Context(), UserFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get book", err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// DeleteBook handles DELETE /books/{id}.
//
//	@Summary		Delete a book with all its notes and their links
//	@Tags			books
//	@Param			id	path	string	true	"Book ID"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id} [delete]
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBook(r.Context(), UserFromRequest(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "delete book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBookNotes handles GET /books/{id}/notes.
//
//	@Summary		List the notes of a book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	NoteListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id}/notes [get]
func (h *Handler) ListBookNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.NotesByBook(r.Context(), UserFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "list book notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items})
}

// CreateNote handles POST /notes.
//
//	@Summary		Create a note, embed it and link it to similar notes
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.CreateNote(r.Context(), UserFromRequest(r), req)
	if err != nil {
		writeError(w, r, "create note", err)
		return
	}
	writeNote(w, http.StatusCreated, n)
}

// GetNote handles GET /notes/{id}.
//
//	@Summary		Get a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	models.Note
//	@Header			200	{string}	ETag	"Note version"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetNote(r.Context(), UserFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get note", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// UpdateNote handles PUT /notes/{id}.
//
//	@Summary		Update a note and rebuild its links
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note ID"
//	@Param			If-Match	header		string				false	"Expected version"
//	@Param			body		body		UpdateNoteRequest	true	"New note fields"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	n, err := h.svc.UpdateNote(r.Context(), UserFromRequest(r), chi.URLParam(r, "id"), req, ifMatch)
	if err != nil {
		writeError(w, r, "update note", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /notes/{id}.
//
//	@Summary		Delete a note and its links
//	@Tags			notes
//	@Param			id	path	string	true	"Note ID"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), UserFromRequest(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RelatedNotes handles GET /notes/{id}/related.
//
//	@Summary		List notes linked to a note, with shared concepts
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	RelatedResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/related [get]
func (h *Handler) RelatedNotes(w http.ResponseWriter, r *http.Request) {
	related, err := h.svc.RelatedNotes(r.Context(), UserFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "related notes", err)
		return
	}
	writeJSON(w, http.StatusOK, RelatedResponse{Related: related})
}

// Concepts handles GET /notes/{id}/concepts.
//
//	@Summary		Extract the concepts of a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	ConceptsResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/concepts [get]
func (h *Handler) Concepts(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Concepts(r.Context(), UserFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "concepts", err)
		return
	}
	writeJSON(w, http.StatusOK, ConceptsResponse{Concepts: c})
}

// Relink handles POST /notes/{id}/relink.
//
//	@Summary		Rebuild the links of a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	linking.LinkResult
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/relink [post]
func (h *Handler) Relink(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Relink(r.Context(), UserFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "relink", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /search.
//
//	@Summary		Search notes by meaning or by text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Query"
//	@Param			mode	query		string	false	"Search mode"	Enums(semantic, text)
//	@Param			limit	query		int		false	"Max results for text mode"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("mode")
	if mode == "" {
		mode = "semantic"
	}

	var (
		hits []models.SearchHit
		err  error
	)
	switch mode {
	case "semantic":
		hits, err = h.svc.SemanticSearch(r.Context(), UserFromRequest(r), q.Get("q"))
	case "text":
		limit, _ := strconv.Atoi(q.Get("limit"))
		hits, err = h.svc.TextSearch(r.Context(), UserFromRequest(r), q.Get("q"), limit)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be semantic or text"))
		return
	}
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Mode: mode, Results: hits})
}

// Ask handles POST /ask.
//
//	@Summary		Answer a question from the caller's notes
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AskRequest	true	"Question"
//	@Success		200		{object}	notes.Answer
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ans, err := h.svc.Ask(r.Context(), UserFromRequest(r), req.Question, req.TopK)
	if err != nil {
		writeError(w, r, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func writeNote(w http.ResponseWriter, status int, n *models.Note) {
	w.Header().Set("ETag", `"`+notes.Version(n)+`"`)
	writeJSON(w, status, n)
}
