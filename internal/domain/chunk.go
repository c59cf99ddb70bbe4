package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const chunkKeySeparator = "#"

// Chunk is a paragraph-sized, indexed slice of a document. Index starts at 1.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
}

// ChunkID identifies a chunk within a run.
type ChunkID struct {
	DocumentID string
	Index      int
}

// ID returns the chunk's identifier.
func (c Chunk) ID() ChunkID {
	return ChunkID{DocumentID: c.DocumentID, Index: c.Index}
}

// Key returns the stable string identifier "<document_id>#<index>".
func (c Chunk) Key() string {
	return c.ID().String()
}

// ContentHash fingerprints the chunk text so cached embeddings can be reused
// only while the text is unchanged.
func (c Chunk) ContentHash() string {
	sum := sha256.Sum256([]byte(c.Text))
	return hex.EncodeToString(sum[:])
}

func (id ChunkID) String() string {
	return id.DocumentID + chunkKeySeparator + strconv.Itoa(id.Index)
}

// ParseChunkKey is the inverse of ChunkID.String.
func ParseChunkKey(key string) (ChunkID, error) {
	i := strings.LastIndex(key, chunkKeySeparator)
	if i <= 0 || i == len(key)-1 {
		return ChunkID{}, NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidChunkKey.Message, fmt.Errorf("key %q", key))
	}
	index, err := strconv.Atoi(key[i+1:])
	if err != nil || index < 1 {
		return ChunkID{}, NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidChunkKey.Message, fmt.Errorf("key %q", key))
	}
	return ChunkID{DocumentID: key[:i], Index: index}, nil
}
