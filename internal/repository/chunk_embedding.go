package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// ChunkEmbeddingRepository caches chunk embeddings keyed by embedding model,
// chunk id and content hash.
type ChunkEmbeddingRepository struct {
	db dbtx
}

func NewChunkEmbeddingRepository(pool *pgxpool.Pool) *ChunkEmbeddingRepository {
	return &ChunkEmbeddingRepository{db: pool}
}

func NewChunkEmbeddingRepositoryWithTx(tx dbtx) *ChunkEmbeddingRepository {
	return &ChunkEmbeddingRepository{db: tx}
}

// LookupEmbeddings returns vectors produced by model whose stored hash matches
// the chunk's current text.
func (r *ChunkEmbeddingRepository) LookupEmbeddings(ctx context.Context, model string, chunks []domain.Chunk) (map[domain.ChunkID][]float32, error) {
	out := make(map[domain.ChunkID][]float32, len(chunks))
	if len(chunks) == 0 {
		return out, nil
	}

	docIDs := make([]string, len(chunks))
	indexes := make([]int32, len(chunks))
	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		docIDs[i] = c.DocumentID
		indexes[i] = int32(c.Index)
		hashes[i] = c.ContentHash()
	}

	rows, err := r.db.Query(ctx,
		`SELECT e.document_id, e.chunk_index, e.embedding
		 FROM chunk_embeddings e
		 JOIN unnest($1::text[], $2::int[], $3::text[]) AS k(document_id, chunk_index, content_hash)
		   ON e.document_id = k.document_id
		  AND e.chunk_index = k.chunk_index
		  AND e.content_hash = k.content_hash
		 WHERE e.model = $4`,
		docIDs, indexes, hashes, model,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id domain.ChunkID
		var v pgvector.Vector
		if err := rows.Scan(&id.DocumentID, &id.Index, &v); err != nil {
			return nil, err
		}
		out[id] = v.Slice()
	}
	return out, rows.Err()
}

// StoreEmbeddings replaces the vector model cached for each chunk.
func (r *ChunkEmbeddingRepository) StoreEmbeddings(ctx context.Context, model string, chunks []domain.Chunk, vectors [][]float32) error {
	for i, c := range chunks {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunk_embeddings (model, document_id, chunk_index, content_hash, embedding, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (model, document_id, chunk_index) DO UPDATE SET
			     content_hash = EXCLUDED.content_hash,
			     embedding = EXCLUDED.embedding,
			     updated_at = now()`,
			model, c.DocumentID, c.Index, c.ContentHash(), pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
