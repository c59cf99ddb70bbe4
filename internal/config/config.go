package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/retry"
)

const envPrefix = "NEWSWEAVE"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DBMaxConns     int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns     int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
	APIToken       string `envconfig:"API_TOKEN"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"newsweave-runs"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	OpenAIAPIKey              string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL             string `envconfig:"OPENAI_BASE_URL"`
	OpenAIEmbeddingModel      string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	OpenAIEmbeddingDimensions int    `envconfig:"OPENAI_EMBEDDING_DIMENSIONS" default:"1536"`
	OpenAIJudgeModel          string `envconfig:"OPENAI_JUDGE_MODEL" default:"gpt-4o-mini"`

	ClusterEps        float64       `envconfig:"CLUSTER_EPS" default:"0.4"`
	ClusterMinSamples int           `envconfig:"CLUSTER_MIN_SAMPLES" default:"2"`
	ClusterWindow     time.Duration `envconfig:"CLUSTER_WINDOW" default:"48h"`
	LexiconFile       string        `envconfig:"LEXICON_FILE"`

	AttributionThreshold float64 `envconfig:"ATTRIBUTION_THRESHOLD" default:"0.75"`
	AttributionStrategy  string  `envconfig:"ATTRIBUTION_STRATEGY" default:"similarity"`

	EmbedBatchSize   int           `envconfig:"EMBED_BATCH_SIZE" default:"64"`
	EmbedConcurrency int           `envconfig:"EMBED_CONCURRENCY" default:"4"`
	EmbedRPS         float64       `envconfig:"EMBED_RPS" default:"5"`
	ProviderTimeout  time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"4"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay    time.Duration `envconfig:"RETRY_MAX_DELAY" default:"10s"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects pipeline parameters that would otherwise be clamped.
func (c *Config) Validate() error {
	if c.ClusterEps <= 0 || c.ClusterEps != c.ClusterEps {
		return domain.NewConfigurationError("%s_CLUSTER_EPS must be greater than 0, got %v", envPrefix, c.ClusterEps)
	}
	if c.ClusterMinSamples < 1 {
		return domain.NewConfigurationError("%s_CLUSTER_MIN_SAMPLES must be at least 1, got %d", envPrefix, c.ClusterMinSamples)
	}
	if err := domain.ValidateThreshold(c.AttributionThreshold); err != nil {
		return err
	}
	if _, err := domain.ParseAttributionStrategy(c.AttributionStrategy); err != nil {
		return err
	}
	if c.EmbedBatchSize < 1 {
		return domain.NewConfigurationError("%s_EMBED_BATCH_SIZE must be at least 1, got %d", envPrefix, c.EmbedBatchSize)
	}
	if c.EmbedConcurrency < 1 {
		return domain.NewConfigurationError("%s_EMBED_CONCURRENCY must be at least 1, got %d", envPrefix, c.EmbedConcurrency)
	}
	if c.EmbedRPS < 0 {
		return domain.NewConfigurationError("%s_EMBED_RPS must not be negative, got %v", envPrefix, c.EmbedRPS)
	}
	if c.OpenAIEmbeddingDimensions < 1 {
		return domain.NewConfigurationError("%s_OPENAI_EMBEDDING_DIMENSIONS must be at least 1, got %d", envPrefix, c.OpenAIEmbeddingDimensions)
	}
	if c.RetryMaxAttempts < 1 {
		return domain.NewConfigurationError("%s_RETRY_MAX_ATTEMPTS must be at least 1, got %d", envPrefix, c.RetryMaxAttempts)
	}
	if c.ClusterWindow < 0 {
		return domain.NewConfigurationError("%s_CLUSTER_WINDOW must not be negative", envPrefix)
	}
	return nil
}

// RequireDatabase is checked by commands that need Postgres.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return domain.NewConfigurationError("%s_DATABASE_URL is required", envPrefix)
	}
	return nil
}

// RequireAPIToken is checked by the API server; an unset token would leave
// every route closed.
func (c *Config) RequireAPIToken() error {
	if c.APIToken == "" {
		return domain.NewConfigurationError("%s_API_TOKEN is required", envPrefix)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) Strategy() domain.AttributionStrategy {
	s, _ := domain.ParseAttributionStrategy(c.AttributionStrategy)
	return s
}

// RetryPolicy builds the provider-call retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.RetryMaxAttempts
	p.BaseDelay = c.RetryBaseDelay
	p.MaxDelay = c.RetryMaxDelay
	p.Timeout = c.ProviderTimeout
	return p
}
