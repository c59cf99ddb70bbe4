package cli

import (
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/config"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/openai"
	"github.com/cloo-solutions/newsweave/internal/service"
)

// BuildAttributors wires both attribution strategies against the configured
// OpenAI account. Without an API key it returns an empty map. cache may be nil.
func BuildAttributors(cfg *config.Config, cache service.EmbeddingCache, logger *zap.Logger) (map[domain.AttributionStrategy]service.Attributor, error) {
	attributors := map[domain.AttributionStrategy]service.Attributor{}
	if !cfg.HasOpenAI() {
		return attributors, nil
	}

	embeddingModel := goopenai.EmbeddingModel(cfg.OpenAIEmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = openai.DefaultEmbeddingModel
	}
	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      embeddingModel,
		EmbeddingDimensions: cfg.OpenAIEmbeddingDimensions,
		JudgeModel:          cfg.OpenAIJudgeModel,
	})
	deps := service.AttributorDeps{
		Embedder: service.NewDenseEmbedder(client, service.EmbedderConfig{
			BatchSize:   cfg.EmbedBatchSize,
			Concurrency: cfg.EmbedConcurrency,
			RPS:         cfg.EmbedRPS,
			Retry:       cfg.RetryPolicy(),
		}, logger),
		EmbeddingModel: string(embeddingModel),
		Cache:          cache,
		Judge:          client,
		JudgeCfg: service.JudgeConfig{
			Concurrency: cfg.EmbedConcurrency,
			RPS:         cfg.EmbedRPS,
			Retry:       cfg.RetryPolicy(),
		},
		Logger: logger,
	}

	for _, strategy := range []domain.AttributionStrategy{domain.StrategySimilarity, domain.StrategyLLMJudge} {
		attributor, err := service.NewAttributor(strategy, deps)
		if err != nil {
			return nil, err
		}
		attributors[strategy] = attributor
	}
	return attributors, nil
}
