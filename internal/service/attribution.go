package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
	"github.com/cloo-solutions/newsweave/internal/vectorize"
)

// Attributor maps each generated chunk to the source documents that support
// it. It returns exactly one entry per generated chunk, in generated order.
// Per-chunk failures are reported as failed entries, not errors.
type Attributor interface {
	Attribute(ctx context.Context, generated, sources []domain.Chunk, threshold float64) ([]domain.AttributionEntry, error)
}

// EmbeddingCache stores chunk embeddings keyed by embedding model, chunk id
// and content hash.
type EmbeddingCache interface {
	// LookupEmbeddings returns cached vectors produced by model for chunks
	// whose stored content hash still matches.
	LookupEmbeddings(ctx context.Context, model string, chunks []domain.Chunk) (map[domain.ChunkID][]float32, error)
	StoreEmbeddings(ctx context.Context, model string, chunks []domain.Chunk, vectors [][]float32) error
}

// dimensioned is implemented by embedders that know their vector length.
type dimensioned interface {
	Dimensions() int
}

// SimilarityAttributor attributes by cosine similarity of dense embeddings.
type SimilarityAttributor struct {
	embedder DenseEmbedding
	cache    EmbeddingCache
	model    string
	logger   *zap.Logger
}

// NewSimilarityAttributor creates a SimilarityAttributor. cache may be nil.
func NewSimilarityAttributor(embedder DenseEmbedding, cache EmbeddingCache, logger *zap.Logger) *SimilarityAttributor {
	return &SimilarityAttributor{
		embedder: embedder,
		cache:    cache,
		logger:   logging.Component(logger, "similarity-attributor"),
	}
}

// WithModel namespaces cached vectors by the embedding model that produced
// them.
func (a *SimilarityAttributor) WithModel(model string) *SimilarityAttributor {
	a.model = model
	return a
}

// Attribute embeds every chunk, then for each generated chunk keeps the best
// similarity per source document among source chunks scoring at least
// threshold. A generated chunk without an embedding gets a failed entry.
func (a *SimilarityAttributor) Attribute(ctx context.Context, generated, sources []domain.Chunk, threshold float64) ([]domain.AttributionEntry, error) {
	if err := domain.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if len(generated) == 0 {
		return []domain.AttributionEntry{}, nil
	}

	all := make([]domain.Chunk, 0, len(generated)+len(sources))
	all = append(all, generated...)
	all = append(all, sources...)
	raw, err := a.embed(ctx, all)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(raw))
	for i, v := range raw {
		vectors[i] = vectorize.ToFloat64(v)
	}
	genVecs, srcVecs := vectors[:len(generated)], vectors[len(generated):]

	missingSources := 0
	for _, v := range srcVecs {
		if v == nil {
			missingSources++
		}
	}
	if missingSources > 0 {
		a.logger.Warn("source chunks without embeddings are excluded from matching",
			zap.Int("missing", missingSources),
			zap.Int("sources", len(sources)),
		)
	}

	entries := make([]domain.AttributionEntry, len(generated))
	for i, chunk := range generated {
		if genVecs[i] == nil {
			a.logger.Warn("generated chunk has no embedding",
				zap.String(logging.FieldDocumentID, chunk.DocumentID),
				zap.Int(logging.FieldChunkIndex, chunk.Index),
			)
			entries[i] = domain.NewFailedAttributionEntry(chunk.ID(), domain.ErrMissingEmbedding)
			continue
		}
		best := make(map[string]float64)
		for j, src := range sources {
			if srcVecs[j] == nil {
				continue
			}
			sim := vectorize.CosineSimilarity(genVecs[i], srcVecs[j])
			if sim < threshold {
				continue
			}
			if prev, ok := best[src.DocumentID]; !ok || sim > prev {
				best[src.DocumentID] = sim
			}
		}
		entries[i] = domain.NewAttributionEntry(chunk.ID(), best)
	}
	return entries, nil
}

// embed resolves vectors for chunks, consulting the cache first and writing
// newly computed vectors back. Cache failures only cost a re-embed. Cached
// vectors whose length disagrees with the provider are embedded again.
func (a *SimilarityAttributor) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	dims := 0
	if d, ok := a.embedder.(dimensioned); ok {
		dims = d.Dimensions()
	}

	var cached map[domain.ChunkID][]float32
	if a.cache != nil {
		var err error
		cached, err = a.cache.LookupEmbeddings(ctx, a.model, chunks)
		if err != nil {
			a.logger.Warn("embedding cache lookup failed", zap.Error(err))
			cached = nil
		}
	}

	var pending []int
	fromCache := make([]bool, len(chunks))
	for i, c := range chunks {
		if v, ok := cached[c.ID()]; ok && v != nil && (dims <= 0 || len(v) == dims) {
			out[i] = v
			fromCache[i] = true
			continue
		}
		pending = append(pending, i)
	}

	fresh, err := a.embedInto(ctx, chunks, pending, out)
	if err != nil {
		return nil, err
	}
	if dims <= 0 && len(fresh) > 0 {
		dims = len(out[fresh[0]])
	}

	if dims > 0 {
		var stale []int
		for i, v := range out {
			if fromCache[i] && len(v) != dims {
				stale = append(stale, i)
			}
		}
		if len(stale) > 0 {
			a.logger.Warn("re-embedding cached vectors with stale dimensions",
				zap.Int("stale", len(stale)),
				zap.Int("dimensions", dims),
			)
			again, err := a.embedInto(ctx, chunks, stale, out)
			if err != nil {
				return nil, err
			}
			fresh = append(fresh, again...)
		}
	}
	out = a.uniformDimensions(chunks, out, dims)

	if a.cache != nil {
		var storeChunks []domain.Chunk
		var storeVectors [][]float32
		for _, i := range fresh {
			if out[i] != nil {
				storeChunks = append(storeChunks, chunks[i])
				storeVectors = append(storeVectors, out[i])
			}
		}
		if len(storeChunks) > 0 {
			if err := a.cache.StoreEmbeddings(ctx, a.model, storeChunks, storeVectors); err != nil {
				a.logger.Warn("embedding cache store failed", zap.Error(err))
			}
		}
	}
	return out, nil
}

// embedInto embeds chunks[positions] into out and returns the positions that
// received a vector. Positions left without one are set to nil.
func (a *SimilarityAttributor) embedInto(ctx context.Context, chunks []domain.Chunk, positions []int, out [][]float32) ([]int, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	texts := make([]string, len(positions))
	for i, p := range positions {
		texts[i] = chunks[p].Text
	}
	vectors, err := a.embedder.EmbedDense(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	var got []int
	for i, p := range positions {
		var v []float32
		if i < len(vectors) {
			v = vectors[i]
		}
		out[p] = v
		if v != nil {
			got = append(got, p)
		}
	}
	return got, nil
}

// uniformDimensions nils every vector whose length differs from dims. With
// dims unknown the first vector sets it.
func (a *SimilarityAttributor) uniformDimensions(chunks []domain.Chunk, vectors [][]float32, dims int) [][]float32 {
	for i, v := range vectors {
		if v == nil {
			continue
		}
		if dims <= 0 {
			dims = len(v)
		}
		if len(v) != dims {
			a.logger.Warn("dropping embedding with unexpected dimensions",
				zap.String("chunk", chunks[i].Key()),
				zap.Int("dimensions", len(v)),
				zap.Int("expected", dims),
			)
			vectors[i] = nil
		}
	}
	return vectors
}

// AttributorDeps holds what either strategy may need. EmbeddingModel names
// the model behind Embedder and keys the cache.
type AttributorDeps struct {
	Embedder       DenseEmbedding
	EmbeddingModel string
	Cache          EmbeddingCache
	Judge          Judge
	JudgeCfg       JudgeConfig
	Logger         *zap.Logger
}

// NewAttributor selects the attribution strategy.
func NewAttributor(strategy domain.AttributionStrategy, deps AttributorDeps) (Attributor, error) {
	switch strategy {
	case domain.StrategySimilarity, "":
		if deps.Embedder == nil {
			return nil, domain.NewConfigurationError("similarity attribution requires an embedding provider")
		}
		return NewSimilarityAttributor(deps.Embedder, deps.Cache, deps.Logger).WithModel(deps.EmbeddingModel), nil
	case domain.StrategyLLMJudge:
		if deps.Judge == nil {
			return nil, domain.NewConfigurationError("llm attribution requires a judge model")
		}
		return NewJudgeAttributor(deps.Judge, deps.JudgeCfg, deps.Logger), nil
	}
	return nil, domain.NewConfigurationError("unknown attribution strategy %q", strategy)
}
