package chash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEmptyIsEmptyString(t *testing.T) {
	t.Parallel()

	got, err := Compute(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, "", ComputeBytes(nil))
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), 10_000)
	a, err := Compute(bytes.NewReader(data))
	require.NoError(t, err)
	b, err := Compute(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, a, ComputeBytes(data))
}

func TestComputeDiffersAcrossContent(t *testing.T) {
	t.Parallel()

	a := ComputeBytes([]byte("Dummy file"))
	b := ComputeBytes([]byte("Dummy file "))
	assert.NotEqual(t, a, b)
}

func TestComputeSpansMultipleChunks(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0xAB}, ChunkSize+17)
	got, err := Compute(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ComputeBytes(data), got)
	assert.Len(t, got, 64) // hex-encoded sha256
}
