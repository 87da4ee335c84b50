// Package testutil provides shared test helpers for databases and model fakes.
package testutil

import (
	"context"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/starford/marginalia/internal/openai"
	"github.com/starford/marginalia/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T, opts ...store.Option) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "marginalia-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// EmbeddingDims is the vector size produced by Embedder.
const EmbeddingDims = 256

// Embedder hashes words into a bag-of-words vector, so texts sharing words
// score a high cosine similarity.
type Embedder struct {
	mu    sync.Mutex
	calls int
	Err   error
}

// Embed implements linking.Embedder.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vec := make([]float32, EmbeddingDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?\"'")))
		vec[h.Sum32()%EmbeddingDims]++
	}
	return vec, nil
}

// Calls returns how many times Embed ran.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Chat records chat requests and replies with Reply.
type Chat struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	Messages [][]openai.Message
}

// Chat implements the chat completion call.
func (c *Chat) Chat(_ context.Context, messages []openai.Message, _ float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, messages)
	if c.Err != nil {
		return "", c.Err
	}
	return c.Reply, nil
}

// Event is one recorded publication.
type Event struct {
	UserID   string
	Kind     string
	NoteID   string
	Inserted int
}

// Events records note and link events.
type Events struct {
	mu  sync.Mutex
	all []Event
}

// PublishNoteEvent records a note event.
func (e *Events) PublishNoteEvent(userID, kind, noteID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, Event{UserID: userID, Kind: "note." + kind, NoteID: noteID})
}

// PublishLinksEvent records a links event.
func (e *Events) PublishLinksEvent(userID, noteID string, inserted int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, Event{UserID: userID, Kind: "links.updated", NoteID: noteID, Inserted: inserted})
}

// Kinds returns the recorded event kinds in order.
func (e *Events) Kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.all))
	for i, ev := range e.all {
		out[i] = ev.Kind
	}
	return out
}

// All returns a copy of the recorded events.
func (e *Events) All() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.all...)
}
