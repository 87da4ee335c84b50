package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
}

func TestNoteKey_ChangesWithContent(t *testing.T) {
	a := NoteKey("n1", "hello", "", "")
	b := NoteKey("n1", "hello!", "", "")
	c := NoteKey("n2", "hello", "", "")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, NoteKey("n1", "hello", "", ""))
}

func TestNoteKey_FieldBoundaries(t *testing.T) {
	// Moving text between fields must not collide.
	assert.NotEqual(t, NoteKey("n", "ab", "c", ""), NoteKey("n", "a", "bc", ""))
}
