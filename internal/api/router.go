package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marginalia/internal/notes"
)

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *notes.Service, auth Auth, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	// Books.
	r.Get("/books", h.ListBooks)
	r.Post("/books", h.CreateBook)
	r.Get("/books/{id}", h.GetBook)
	r.Delete("/books/{id}", h.DeleteBook)
	r.Get("/books/{id}/notes", h.ListBookNotes)

	// Notes.
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Get("/notes/{id}/related", h.RelatedNotes)
	r.Get("/notes/{id}/concepts", h.Concepts)
	r.Post("/notes/{id}/relink", h.Relink)

	// Search and RAG.
	r.Get("/search", h.Search)
	r.Post("/ask", h.Ask)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
