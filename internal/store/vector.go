package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/models"
)

// Match scans the user's embedded notes and returns those whose cosine
// similarity to q.Vector is at least q.Threshold, best first, at most
// q.Count of them.
func (db *DB) Match(ctx context.Context, q linking.MatchQuery) (_ []models.Match, err error) {
	done := timeOp("match_notes")
	defer func() { done(err) }()

	query := `SELECT id, embedding FROM notes WHERE user_id = ? AND embedding IS NOT NULL`
	args := []any{q.UserID}
	if q.SameBookOnly {
		if !db.collectionFilter {
			return nil, fmt.Errorf("store: match notes by book: %w", apperr.ErrUnsupported)
		}
		query += ` AND book_id = ?`
		args = append(args, q.BookID)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: match notes: %w", err)
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var (
			id  string
			emb []byte
		)
		if err := rows.Scan(&id, &emb); err != nil {
			return nil, fmt.Errorf("store: scan embedding: %w", err)
		}
		sim := cosine(q.Vector, decodeVector(emb))
		if sim < q.Threshold {
			continue
		}
		out = append(out, models.Match{NoteID: id, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: match notes: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector packs floats as little-endian float32s.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
