package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
	"github.com/cloo-solutions/newsweave/internal/openai"
	"github.com/cloo-solutions/newsweave/internal/retry"
)

// Judge asks a language model which catalog entries support a passage.
type Judge interface {
	JudgeSupport(ctx context.Context, req openai.JudgeRequest) openai.JudgeResult
}

// JudgeConfig bounds judge calls.
type JudgeConfig struct {
	Concurrency int
	RPS         float64
	Retry       retry.Policy
}

// JudgeAttributor attributes by asking a language model to name supporting
// source chunks. It has no similarity score, so threshold is validated but
// otherwise unused and reported similarities are zero.
type JudgeAttributor struct {
	judge   Judge
	cfg     JudgeConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewJudgeAttributor creates a JudgeAttributor
func NewJudgeAttributor(judge Judge, cfg JudgeConfig, logger *zap.Logger) *JudgeAttributor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	logger = logging.Component(logger, "judge-attributor")
	cfg.Retry.Logger = logger
	return &JudgeAttributor{
		judge:   judge,
		cfg:     cfg,
		limiter: newLimiter(cfg.RPS, cfg.Concurrency),
		logger:  logger,
	}
}

// judgeCatalog is the id lookup for one Attribute call.
type judgeCatalog struct {
	entries []openai.CatalogEntry
	parents map[string]string
}

func newJudgeCatalog(sources []domain.Chunk) *judgeCatalog {
	c := &judgeCatalog{
		entries: make([]openai.CatalogEntry, 0, len(sources)),
		parents: make(map[string]string, len(sources)),
	}
	for _, s := range sources {
		key := s.Key()
		if _, dup := c.parents[key]; dup {
			continue
		}
		c.entries = append(c.entries, openai.CatalogEntry{ID: key, Text: s.Text})
		c.parents[key] = s.DocumentID
	}
	return c
}

// Attribute asks the judge about each generated chunk concurrently. Ids the
// judge invents are dropped with a warning. A chunk whose call fails after
// retries, or whose answer does not fit the schema, gets a failed entry.
func (a *JudgeAttributor) Attribute(ctx context.Context, generated, sources []domain.Chunk, threshold float64) ([]domain.AttributionEntry, error) {
	if err := domain.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	entries := make([]domain.AttributionEntry, len(generated))
	if len(generated) == 0 {
		return entries, nil
	}
	catalog := newJudgeCatalog(sources)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, chunk := range generated {
		i, chunk := i, chunk
		g.Go(func() error {
			entries[i] = a.attributeChunk(gctx, chunk, catalog)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to judge chunks: %w", err)
	}
	return entries, nil
}

func (a *JudgeAttributor) attributeChunk(ctx context.Context, chunk domain.Chunk, catalog *judgeCatalog) domain.AttributionEntry {
	if len(catalog.entries) == 0 {
		return domain.NewAttributionEntry(chunk.ID(), nil)
	}

	var result openai.JudgeResult
	err := a.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		result = a.judge.JudgeSupport(ctx, openai.JudgeRequest{Generated: chunk.Text, Catalog: catalog.entries})
		return result.AsError()
	})
	if err != nil {
		fields := []zap.Field{
			zap.String(logging.FieldDocumentID, chunk.DocumentID),
			zap.Int(logging.FieldChunkIndex, chunk.Index),
			zap.Error(err),
		}
		if result.Outcome == openai.JudgeSchemaError {
			fields = append(fields, zap.String("raw", result.Raw))
		}
		a.logger.Warn("judge failed for chunk", fields...)
		return domain.NewFailedAttributionEntry(chunk.ID(), err)
	}

	best := make(map[string]float64)
	for _, id := range result.IDs {
		parent, ok := catalog.parents[id]
		if !ok {
			a.logger.Warn(domain.ErrUnknownChunkID.Message,
				zap.String("code", domain.ErrCodeDataIntegrity),
				zap.String("chunk_id", id),
				zap.String(logging.FieldDocumentID, chunk.DocumentID),
				zap.Int(logging.FieldChunkIndex, chunk.Index),
			)
			continue
		}
		best[parent] = 0
	}
	return domain.NewAttributionEntry(chunk.ID(), best)
}
