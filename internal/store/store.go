package store

import (
	"database/sql"
	"fmt"

	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/metrics"
	"github.com/starford/marginalia/internal/models"
)

// Verify *DB satisfies the linking ports at compile time.
var (
	_ linking.Searcher  = (*DB)(nil)
	_ linking.EdgeStore = (*DB)(nil)
	_ linking.NoteStore = (*DB)(nil)
)

type scanner interface {
	Scan(dest ...any) error
}

func timeOp(op string) func(error) {
	done := metrics.TimeOp(op)
	return func(err error) { done(err == nil) }
}

func scanHits(rows *sql.Rows) ([]models.SearchHit, error) {
	out := []models.SearchHit{}
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.NoteID, &h.BookID, &h.BookTitle, &h.Content, &h.Quote, &h.PageRef, &h.Snippet); err != nil {
			return nil, fmt.Errorf("store: scan hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
