// Package inbox imports Markdown files dropped into a directory as notes.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/parser"
)

// Sub-directories for files that were imported or rejected.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Importer creates the books and notes found in inbox files.
type Importer interface {
	EnsureBook(ctx context.Context, userID, title string) (*models.Book, error)
	CreateNote(ctx context.Context, userID string, in notes.NoteInput) (*models.Note, error)
}

// Inbox imports files from Dir for a single user.
type Inbox struct {
	dir         string
	userID      string
	defaultBook string
	importer    Importer
	logger      *slog.Logger
}

// New returns an inbox over dir. Notes without a book go to defaultBook.
func New(dir, userID, defaultBook string, importer Importer, logger *slog.Logger) *Inbox {
	return &Inbox{
		dir:         dir,
		userID:      userID,
		defaultBook: defaultBook,
		importer:    importer,
		logger:      logger,
	}
}

// Prepare creates the inbox and its sub-directories.
func (in *Inbox) Prepare() error {
	for _, d := range []string{in.dir, filepath.Join(in.dir, ProcessedDir), filepath.Join(in.dir, FailedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
	}
	return nil
}

// Scan imports every Markdown file currently in the inbox, in name order.
// It returns the number of notes created.
func (in *Inbox) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, fmt.Errorf("inbox: scan: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isMarkdown(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	created := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		ok, err := in.ImportFile(ctx, filepath.Join(in.dir, name))
		if err != nil {
			in.logger.Warn("inbox: import failed", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ImportFile imports one file and moves it out of the inbox. Files that can
// never become a note are moved to failed/. Other errors leave the file in
// place so the next scan retries it. It reports whether a note was created.
func (in *Inbox) ImportFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inbox: read %s: %w", path, err)
	}
	sum := checksum.Sum(data)

	n, err := in.importData(ctx, data)
	if errors.Is(err, parser.ErrInvalidFrontmatter) || errors.Is(err, apperr.ErrInvalidInput) {
		in.logger.Warn("inbox: rejected",
			slog.String("file", filepath.Base(path)),
			slog.String("checksum", sum),
			slog.String("error", err.Error()))
		return false, in.move(path, FailedDir, sum)
	}
	if err != nil {
		return false, err
	}

	in.logger.Info("inbox: imported",
		slog.String("file", filepath.Base(path)),
		slog.String("checksum", sum),
		slog.String("note_id", n.ID),
		slog.String("book_id", n.BookID))
	return true, in.move(path, ProcessedDir, sum)
}

func (in *Inbox) importData(ctx context.Context, data []byte) (*models.Note, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if res.Content == "" {
		return nil, fmt.Errorf("%w: empty note", apperr.ErrInvalidInput)
	}
	title := res.Book
	if title == "" {
		title = in.defaultBook
	}
	book, err := in.importer.EnsureBook(ctx, in.userID, title)
	if err != nil {
		return nil, err
	}
	return in.importer.CreateNote(ctx, in.userID, notes.NoteInput{
		BookID:       book.ID,
		Content:      res.Content,
		Quote:        res.Quote,
		PageRef:      res.Page,
		SameBookOnly: res.SameBookOnly,
	})
}

// move renames path into sub. A name already taken there gets the content
// checksum appended.
func (in *Inbox) move(path, sub, sum string) error {
	name := filepath.Base(path)
	dst := filepath.Join(in.dir, sub, name)
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(name)
		dst = filepath.Join(in.dir, sub, strings.TrimSuffix(name, ext)+"-"+sum[:12]+ext)
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("inbox: move %s: %w", name, err)
	}
	return nil
}

func isMarkdown(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".md") && !strings.HasPrefix(name, ".")
}
