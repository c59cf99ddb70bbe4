package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/config"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
	"github.com/cloo-solutions/newsweave/internal/repository/sqlite"
	"github.com/cloo-solutions/newsweave/internal/service"
)

// local is the offline environment shared by the batch commands. store is nil
// unless --sqlite was given.
type local struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *sqlite.Store
}

func openLocal(sqlitePath string) (*local, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	l := &local{cfg: cfg, logger: logger}
	if sqlitePath != "" {
		store, err := sqlite.Open(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", sqlitePath, err)
		}
		l.store = store
		logger.Debug("using local store", zap.String("path", store.Path()))
	}
	return l, nil
}

func (l *local) Close() {
	if l.store != nil {
		_ = l.store.Close()
	}
	_ = l.logger.Sync()
}

// embeddingCache returns the store as a chunk embedding cache, or nil without
// --sqlite. The explicit nil keeps a nil *sqlite.Store out of the interface.
func (l *local) embeddingCache() service.EmbeddingCache {
	if l.store == nil {
		return nil
	}
	return l.store
}

// ingest records docs in the local store so later runs can refer to them.
func (l *local) ingest(ctx context.Context, docs []*domain.Document) error {
	if l.store == nil {
		return nil
	}
	records := make([]domain.DocumentRecord, len(docs))
	for i, d := range docs {
		records[i] = d.ToRecord()
	}
	result, err := service.NewDocumentService(l.store, l.logger).Ingest(ctx, records)
	if err != nil {
		return err
	}
	l.logger.Debug("documents stored",
		zap.Int("created", len(result.Created)),
		zap.Int("existing", len(result.Existing)),
	)
	return nil
}
