package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/models"
)

// Note event kinds.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// CreateNote validates and stores a note, then embeds and links it. The
// embedding and linking steps are best-effort: their failures are logged
// and the stored note is returned.
func (s *Service) CreateNote(ctx context.Context, userID string, in NoteInput) (*models.Note, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	n := &models.Note{
		UserID:       userID,
		BookID:       in.BookID,
		Content:      in.Content,
		Quote:        in.Quote,
		PageRef:      in.PageRef,
		SameBookOnly: in.SameBookOnly,
	}
	if err := s.store.InsertNote(ctx, n); err != nil {
		return nil, err
	}
	s.events.PublishNoteEvent(userID, EventCreated, n.ID)

	vector := s.embedNote(ctx, n)
	s.link(ctx, n, vector, false)
	return n, nil
}

// Version identifies the current text of a note; it is served as the ETag
// and checked against If-Match on update.
func Version(n *models.Note) string {
	return checksum.NoteKey(n.ID, n.Content, n.Quote, n.PageRef)
}

// UpdateNote rewrites a note's text and rebuilds its links. The note stays
// in its book. A non-empty ifMatch must equal the note's current Version.
func (s *Service) UpdateNote(ctx context.Context, userID, noteID string, in NoteInput, ifMatch string) (*models.Note, error) {
	n, err := s.store.GetNote(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != Version(n) {
		return nil, apperr.ErrConflict
	}

	in.BookID = n.BookID
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	n.Content = in.Content
	n.Quote = in.Quote
	n.PageRef = in.PageRef
	n.SameBookOnly = in.SameBookOnly
	if err := s.store.UpdateNote(ctx, n); err != nil {
		return nil, err
	}
	s.events.PublishNoteEvent(userID, EventUpdated, n.ID)

	vector := s.embedNote(ctx, n)
	s.link(ctx, n, vector, true)
	return n, nil
}

// DeleteNote removes a note and its links.
func (s *Service) DeleteNote(ctx context.Context, userID, noteID string) error {
	if err := s.store.DeleteNote(ctx, userID, noteID); err != nil {
		return err
	}
	s.events.PublishNoteEvent(userID, EventDeleted, noteID)
	return nil
}

// GetNote returns one note.
func (s *Service) GetNote(ctx context.Context, userID, noteID string) (*models.Note, error) {
	return s.store.GetNote(ctx, userID, noteID)
}

// NotesByBook lists a book's notes, newest first.
func (s *Service) NotesByBook(ctx context.Context, userID, bookID string) ([]models.Note, error) {
	return s.store.NotesByBook(ctx, userID, bookID)
}

// RelatedNotes returns the notes linked to noteID.
func (s *Service) RelatedNotes(ctx context.Context, userID, noteID string) ([]models.RelatedNote, error) {
	return s.linker.GetRelatedNotes(ctx, userID, noteID)
}

// Concepts returns the concepts extracted from a note.
func (s *Service) Concepts(ctx context.Context, userID, noteID string) ([]string, error) {
	return s.linker.Concepts(ctx, userID, noteID)
}

// Relink drops the note's outgoing links and rebuilds them. Unlike the
// linking done on create and update, failures are returned to the caller.
func (s *Service) Relink(ctx context.Context, userID, noteID string) (linking.LinkResult, error) {
	n, err := s.store.GetNote(ctx, userID, noteID)
	if err != nil {
		return linking.LinkResult{}, err
	}
	res, err := s.linker.Relink(ctx, userID, linkParams(n, n.Embedding))
	if err != nil {
		return linking.LinkResult{}, fmt.Errorf("notes: relink %s: %w", noteID, err)
	}
	s.events.PublishLinksEvent(userID, noteID, res.Inserted)
	return res, nil
}

// embedNote computes and stores the note's embedding. It returns nil when
// either step fails.
func (s *Service) embedNote(ctx context.Context, n *models.Note) []float32 {
	text := linking.EmbeddingInput(n.Content, n.Quote, n.PageRef)
	if text == "" {
		return nil
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding generation failed",
			slog.String("note_id", n.ID),
			slog.String("error", err.Error()))
		return nil
	}
	if err := s.store.SetEmbedding(ctx, n.UserID, n.ID, vector); err != nil {
		s.logger.Warn("embedding write-back failed",
			slog.String("note_id", n.ID),
			slog.String("error", err.Error()))
		return nil
	}
	n.Embedding = vector
	return vector
}

func (s *Service) link(ctx context.Context, n *models.Note, vector []float32, rebuild bool) {
	if s.linker == nil {
		return
	}
	run := s.linker.AutoLinkNote
	if rebuild {
		run = s.linker.Relink
	}
	res, err := run(ctx, n.UserID, linkParams(n, vector))
	if err != nil {
		s.logger.Warn("auto link failed",
			slog.String("note_id", n.ID),
			slog.String("error", err.Error()))
		return
	}
	s.events.PublishLinksEvent(n.UserID, n.ID, res.Inserted)
}

func linkParams(n *models.Note, vector []float32) linking.LinkParams {
	return linking.LinkParams{
		NoteID:       n.ID,
		Content:      n.Content,
		Quote:        n.Quote,
		PageRef:      n.PageRef,
		SameBookOnly: n.SameBookOnly,
		Vector:       vector,
	}
}
