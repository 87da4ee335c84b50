// Package checksum derives content keys for notes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// NoteKey returns a key that changes whenever the note's text fields change.
func NoteKey(noteID, content, quote, pageRef string) string {
	h := sha256.New()
	for _, part := range []string{noteID, content, quote, pageRef} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
