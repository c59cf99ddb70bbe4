package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// LookupEmbeddings returns vectors cached for model whose stored hash matches
// the chunk's current text.
func (s *Store) LookupEmbeddings(ctx context.Context, model string, chunks []domain.Chunk) (map[domain.ChunkID][]float32, error) {
	out := make(map[domain.ChunkID][]float32, len(chunks))
	for _, c := range chunks {
		var (
			dims int
			blob []byte
		)
		err := s.db.QueryRowContext(ctx,
			`SELECT dimensions, embedding FROM embedding_cache
			 WHERE model = ? AND document_id = ? AND chunk_index = ? AND content_hash = ?`,
			model, c.DocumentID, c.Index, c.ContentHash(),
		).Scan(&dims, &blob)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		v, err := decodeVector(blob, dims)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.Key(), err)
		}
		out[c.ID()] = v
	}
	return out, nil
}

// StoreEmbeddings replaces the vector model cached for each chunk in one
// transaction. Nil vectors are skipped.
func (s *Store) StoreEmbeddings(ctx context.Context, model string, chunks []domain.Chunk, vectors [][]float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i, c := range chunks {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO embedding_cache (model, document_id, chunk_index, content_hash, dimensions, embedding)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (model, document_id, chunk_index) DO UPDATE SET
			     content_hash = excluded.content_hash,
			     dimensions = excluded.dimensions,
			     embedding = excluded.embedding`,
			model, c.DocumentID, c.Index, c.ContentHash(), len(vectors[i]), encodeVector(vectors[i]),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("storing embedding for %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dims int) ([]float32, error) {
	if len(buf) != 4*dims {
		return nil, fmt.Errorf("embedding has %d bytes, want %d", len(buf), 4*dims)
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
