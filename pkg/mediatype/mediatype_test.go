package mediatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuessBySignature(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	assert.Equal(t, "image/png", Guess(png, "photo.txt"))
}

func TestGuessFallsBackToExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "text/markdown", Guess([]byte("# hi"), "README.md"))
}

func TestGuessDistrustsMismatchedExtension(t *testing.T) {
	t.Parallel()

	// plain text content but an extension that should normally be
	// signature-detected: the mismatch must not be trusted.
	assert.Equal(t, OctetStream, Guess([]byte("not actually a png"), "fake.png"))
}

func TestGuessUnsafe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "text/x-go", GuessUnsafe("main.go"))
	assert.Equal(t, OctetStream, GuessUnsafe("noext"))
}

func TestFolderIsLiteralDirectory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/directory", Folder)
}
