package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/api/handlers"
	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/config"
	"github.com/cloo-solutions/newsweave/internal/database"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
	"github.com/cloo-solutions/newsweave/internal/repository"
	"github.com/cloo-solutions/newsweave/internal/service"
	"github.com/cloo-solutions/newsweave/internal/storage"
	"github.com/cloo-solutions/newsweave/internal/telemetry"
	"github.com/cloo-solutions/newsweave/internal/textnorm"
)

// app holds everything the daemon commands share.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool

	documentRepo    *repository.DocumentRepository
	jobRepo         *repository.AttributionJobRepository
	attributionRepo *repository.AttributionRepository

	documents   *service.DocumentService
	clusters    *service.ClusterService
	attribution *service.AttributionService
	jobs        *service.AttributionJobService

	closers []func()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")
	return pool, nil
}

// newApp connects to Postgres and wires the services. Archiving and the
// OpenAI-backed attribution strategies are enabled only when configured.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.DefaultSampleRate(cfg.Environment),
		Debug:            cfg.Debug,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdownTelemetry)

	pool, err := connect(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)

	if migrate {
		if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	normalizer, err := textnorm.FromFile(cfg.LexiconFile)
	if err != nil {
		a.Close()
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid lexicon file", err)
	}

	var archive service.SnapshotArchiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info("run archive ready", zap.String("bucket", cfg.S3Bucket))
		archive = s3Client
	}

	a.documentRepo = repository.NewDocumentRepository(pool)
	a.jobRepo = repository.NewAttributionJobRepository(pool)
	clusterRepo := repository.NewClusterRunRepository(pool)
	a.attributionRepo = repository.NewAttributionRepository(pool)
	tx := repository.NewTxRunner(pool)

	a.documents = service.NewDocumentService(a.documentRepo, logger)
	a.clusters = service.NewClusterService(service.ClusterServiceDeps{
		Normalizer: normalizer,
		Documents:  a.documentRepo,
		Runs:       clusterRepo,
		Tx:         tx,
		Archive:    archive,
		Logger:     logger,
	})

	attributors, err := cli.BuildAttributors(cfg, repository.NewChunkEmbeddingRepository(pool), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(attributors) > 0 {
		a.attribution, err = service.NewAttributionService(service.AttributionServiceDeps{
			Attributors:      attributors,
			DefaultStrategy:  cfg.Strategy(),
			DefaultThreshold: cfg.AttributionThreshold,
			Documents:        a.documentRepo,
			Entries:          a.attributionRepo,
			Tx:               tx,
			Archive:          archive,
			Logger:           logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Warn("attribution disabled: NEWSWEAVE_OPENAI_API_KEY not set")
	}
	a.jobs = service.NewAttributionJobService(a.jobRepo, a.documentRepo, cfg.Strategy(), cfg.AttributionThreshold)

	return a, nil
}

// entryLister serves stored entries even when no attribution strategy is
// configured.
func (a *app) entryLister() handlers.AttributionEntryLister {
	if a.attribution != nil {
		return a.attribution
	}
	return storedEntries{repo: a.attributionRepo}
}

type storedEntries struct {
	repo *repository.AttributionRepository
}

func (s storedEntries) ListEntries(ctx context.Context, documentID string) ([]domain.AttributionEntry, error) {
	return s.repo.ListByDocument(ctx, documentID)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
