package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
)

const user = "inbox-user"

type fakeImporter struct {
	mu    sync.Mutex
	books map[string]string
	notes []notes.NoteInput
	err   error
}

func (f *fakeImporter) EnsureBook(_ context.Context, userID, title string) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.books == nil {
		f.books = map[string]string{}
	}
	id, ok := f.books[title]
	if !ok {
		id = fmt.Sprintf("book-%d", len(f.books)+1)
		f.books[title] = id
	}
	return &models.Book{ID: id, UserID: userID, Title: title}, nil
}

func (f *fakeImporter) CreateNote(_ context.Context, userID string, in notes.NoteInput) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if in.Content == "" {
		return nil, fmt.Errorf("%w: content: cannot be blank", apperr.ErrInvalidInput)
	}
	f.notes = append(f.notes, in)
	return &models.Note{ID: fmt.Sprintf("note-%d", len(f.notes)), UserID: userID, BookID: in.BookID}, nil
}

func (f *fakeImporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

func newInbox(t *testing.T, imp Importer) (*Inbox, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	in := New(dir, user, "Inbox", imp, logger)
	require.NoError(t, in.Prepare())
	return in, dir
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestScan_ImportsAndMoves(t *testing.T) {
	imp := &fakeImporter{}
	in, dir := newInbox(t, imp)
	write(t, dir, "a.md", "---\nbook: Dune\npage: 9\n---\nSpice must flow.\n")
	write(t, dir, "b.md", "Loose thought.\n")
	write(t, dir, "ignored.txt", "not markdown")

	n, err := in.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, imp.notes, 2)
	assert.Equal(t, notes.NoteInput{BookID: imp.books["Dune"], Content: "Spice must flow.", PageRef: "9"}, imp.notes[0])
	assert.Equal(t, imp.books["Inbox"], imp.notes[1].BookID)

	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "a.md"))
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "b.md"))
	assert.NoFileExists(t, filepath.Join(dir, "a.md"))
	assert.FileExists(t, filepath.Join(dir, "ignored.txt"))
}

func TestImportFile_RejectsInvalid(t *testing.T) {
	imp := &fakeImporter{}
	in, dir := newInbox(t, imp)
	write(t, dir, "empty.md", "---\nbook: Dune\n---\n")
	write(t, dir, "broken.md", "---\n: bad: yaml: {{{\n---\nbody\n")

	n, err := in.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, filepath.Join(dir, FailedDir, "empty.md"))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "broken.md"))
}

func TestImportFile_TransientErrorKeepsFile(t *testing.T) {
	imp := &fakeImporter{err: errors.New("database is locked")}
	in, dir := newInbox(t, imp)
	write(t, dir, "a.md", "thought")

	ok, err := in.ImportFile(context.Background(), filepath.Join(dir, "a.md"))
	require.Error(t, err)
	assert.False(t, ok)
	assert.FileExists(t, filepath.Join(dir, "a.md"))
}

func TestImportFile_MissingFile(t *testing.T) {
	in, dir := newInbox(t, &fakeImporter{})
	ok, err := in.ImportFile(context.Background(), filepath.Join(dir, "gone.md"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMove_NameCollision(t *testing.T) {
	imp := &fakeImporter{}
	in, dir := newInbox(t, imp)
	write(t, dir, "a.md", "first")
	_, err := in.Scan(context.Background())
	require.NoError(t, err)

	write(t, dir, "a.md", "second")
	_, err = in.Scan(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, ProcessedDir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWatch_ImportsNewFiles(t *testing.T) {
	imp := &fakeImporter{}
	in, dir := newInbox(t, imp)
	write(t, dir, "existing.md", "already here")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Watch(ctx) }()

	require.Eventually(t, func() bool { return imp.count() == 1 }, 5*time.Second, 20*time.Millisecond)

	write(t, dir, "new.md", "---\nbook: Principles\n---\nPain plus reflection equals progress.\n")
	require.Eventually(t, func() bool { return imp.count() == 2 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, ProcessedDir, "new.md"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
