package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_Key(t *testing.T) {
	c := Chunk{DocumentID: "doc-1", Index: 3, Text: "para"}
	assert.Equal(t, "doc-1#3", c.Key())
	assert.Equal(t, ChunkID{DocumentID: "doc-1", Index: 3}, c.ID())
}

func TestParseChunkKey(t *testing.T) {
	id, err := ParseChunkKey("doc-1#3")
	require.NoError(t, err)
	assert.Equal(t, ChunkID{DocumentID: "doc-1", Index: 3}, id)

	for _, bad := range []string{"", "doc-1", "#3", "doc-1#", "doc-1#0", "doc-1#x", "doc-1#-2"} {
		_, err := ParseChunkKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestChunk_ContentHash(t *testing.T) {
	a := Chunk{DocumentID: "a", Index: 1, Text: "same"}
	b := Chunk{DocumentID: "b", Index: 2, Text: "same"}
	c := Chunk{DocumentID: "a", Index: 1, Text: "changed"}

	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
	assert.Len(t, a.ContentHash(), 64)
}
