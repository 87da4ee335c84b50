package concepts

import (
	"sync"

	"github.com/starford/marginalia/internal/checksum"
)

// Cache memoizes Extract per note. Keys include a checksum of the note's
// text, so an edited note never hits a stale entry.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string][]string
	order   []string
}

// NewCache creates a cache holding at most size entries. A size <= 0
// disables caching.
func NewCache(size int) *Cache {
	return &Cache{max: size, entries: make(map[string][]string)}
}

// ForNote returns the concepts of the given note text.
func (c *Cache) ForNote(noteID, content, quote string) []string {
	text := NoteText(content, quote)
	if c == nil || c.max <= 0 {
		return Extract(text)
	}
	key := checksum.NoteKey(noteID, content, quote, "")

	c.mu.Lock()
	if got, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return got
	}
	c.mu.Unlock()

	got := Extract(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
		c.entries[key] = got
	}
	return got
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// NoteText joins the fields concepts are extracted from.
func NoteText(content, quote string) string {
	if quote == "" {
		return content
	}
	return content + "\n" + quote
}
