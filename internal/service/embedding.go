package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/retry"
)

// EmbeddingClient is the external embedding provider. The result has the
// same length and order as texts; a nil vector marks an item the provider
// could not embed.
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DenseEmbedding produces one vector per text, nil for items that failed.
type DenseEmbedding interface {
	EmbedDense(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig bounds how the embedder talks to the provider.
type EmbedderConfig struct {
	BatchSize   int
	Concurrency int
	// RPS limits provider calls per second. Zero disables the limit.
	RPS   float64
	Retry retry.Policy
}

// DefaultEmbedderConfig returns the settings used when none are configured.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		BatchSize:   64,
		Concurrency: 4,
		RPS:         5,
		Retry:       retry.DefaultPolicy(),
	}
}

// DenseEmbedder batches texts, issues batches concurrently within a bounded
// window, rate limits and retries provider calls, and degrades failures to
// individual items.
type DenseEmbedder struct {
	client  EmbeddingClient
	cfg     EmbedderConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDenseEmbedder creates a DenseEmbedder
func NewDenseEmbedder(client EmbeddingClient, cfg EmbedderConfig, logger *zap.Logger) *DenseEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbedderConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultEmbedderConfig().Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Retry.Logger = logger
	return &DenseEmbedder{
		client:  client,
		cfg:     cfg,
		limiter: newLimiter(cfg.RPS, cfg.Concurrency),
		logger:  logger,
	}
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Dimensions reports the provider's vector length, or 0 when the client does
// not know it.
func (e *DenseEmbedder) Dimensions() int {
	if d, ok := e.client.(dimensioned); ok {
		return d.Dimensions()
	}
	return 0
}

// EmbedDense returns one vector per text in input order. An item whose batch
// and individual retries both fail is nil. The only error returned is
// cancellation of ctx.
func (e *DenseEmbedder) EmbedDense(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start := start
		g.Go(func() error {
			vectors := e.embedBatch(gctx, texts[start:end])
			copy(out[start:end], vectors)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	return out, nil
}

func (e *DenseEmbedder) embedBatch(ctx context.Context, texts []string) [][]float32 {
	vectors, err := e.call(ctx, texts)
	if err == nil {
		return vectors
	}
	if ctx.Err() != nil {
		return make([][]float32, len(texts))
	}

	out := make([][]float32, len(texts))
	if len(texts) == 1 {
		e.logger.Warn("embedding item failed", zap.Error(err))
		return out
	}
	e.logger.Warn("embedding batch failed, retrying items individually",
		zap.Int("batch_size", len(texts)),
		zap.Error(err),
	)
	for i, text := range texts {
		single, err := e.call(ctx, []string{text})
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			e.logger.Warn("embedding item failed", zap.Int("item", i), zap.Error(err))
			continue
		}
		out[i] = single[0]
	}
	return out
}

func (e *DenseEmbedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	return retry.DoValue(ctx, e.cfg.Retry, func(ctx context.Context) ([][]float32, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vectors, err := e.client.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, domain.NewPermanentProviderError(
				fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts)))
		}
		return vectors, nil
	})
}
