package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
	"github.com/cloo-solutions/newsweave/internal/telemetry"
)

// AttributionRequest asks for one attribution pass over a generated document.
// An empty Strategy or nil Threshold falls back to the service defaults.
type AttributionRequest struct {
	Generated *domain.Document
	Sources   []*domain.Document
	Strategy  domain.AttributionStrategy
	Threshold *float64
}

// AttributionReader reads persisted attribution entries.
type AttributionReader interface {
	ListByDocument(ctx context.Context, documentID string) ([]domain.AttributionEntry, error)
}

// AttributionServiceDeps wires an AttributionService. At least one attributor
// is required; without Tx runs stop at the matched state.
type AttributionServiceDeps struct {
	Attributors      map[domain.AttributionStrategy]Attributor
	DefaultStrategy  domain.AttributionStrategy
	DefaultThreshold float64
	Documents        DocumentReader
	Entries          AttributionReader
	Tx               TxRunner
	Archive          SnapshotArchiver
	UUIDGen          UUIDGenerator
	Logger           *zap.Logger
	Now              func() time.Time
}

// AttributionService runs attribution passes and drives each run through
// pending, chunked, embedded, matched and finally persisted or failed.
type AttributionService struct {
	attributors      map[domain.AttributionStrategy]Attributor
	defaultStrategy  domain.AttributionStrategy
	defaultThreshold float64
	documents        DocumentReader
	entries          AttributionReader
	tx               TxRunner
	archive          SnapshotArchiver
	uuidGen          UUIDGenerator
	logger           *zap.Logger
	now              func() time.Time
}

// NewAttributionService creates a new AttributionService instance
func NewAttributionService(deps AttributionServiceDeps) (*AttributionService, error) {
	if len(deps.Attributors) == 0 {
		return nil, domain.NewConfigurationError("attribution service requires at least one attributor")
	}
	if err := domain.ValidateThreshold(deps.DefaultThreshold); err != nil {
		return nil, err
	}
	strategy, err := domain.ParseAttributionStrategy(string(deps.DefaultStrategy))
	if err != nil {
		return nil, err
	}
	s := &AttributionService{
		attributors:      deps.Attributors,
		defaultStrategy:  strategy,
		defaultThreshold: deps.DefaultThreshold,
		documents:        deps.Documents,
		entries:          deps.Entries,
		tx:               deps.Tx,
		archive:          deps.Archive,
		uuidGen:          deps.UUIDGen,
		logger:           logging.Component(deps.Logger, "attribution-service"),
		now:              deps.Now,
	}
	if s.uuidGen == nil {
		s.uuidGen = &DefaultUUIDGenerator{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// Run attributes every paragraph of the generated document to the sources
// that support it. A run that ends in the failed state is returned without an
// error; errors are reserved for invalid requests, cancellation and storage
// failures, in which case the partially advanced run is still returned when
// one was started.
func (s *AttributionService) Run(ctx context.Context, req AttributionRequest) (*domain.AttributionRun, error) {
	if err := domain.ValidateDocument(req.Generated); err != nil {
		return nil, err
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	if _, err := domain.ParseAttributionStrategy(string(strategy)); err != nil {
		return nil, err
	}
	attributor, ok := s.attributors[strategy]
	if !ok {
		return nil, domain.NewConfigurationError("attribution strategy %q is not configured", strategy)
	}
	threshold := s.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if err := domain.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	run := domain.NewAttributionRun(s.uuidGen.NewString(), req.Generated.ID, strategy, threshold, s.now())
	ctx, span := telemetry.StartSpan(ctx, "attribution.run", telemetry.SpanAttributes{
		RunID:      run.ID,
		DocumentID: run.DocumentID,
		Operation:  string(strategy),
	})
	defer span.End()
	log := s.logger.With(
		zap.String(logging.FieldRunID, run.ID),
		zap.String(logging.FieldDocumentID, run.DocumentID),
	)

	generated := SplitDocument(req.Generated)
	sources := SplitDocuments(s.usableSources(req.Generated.ID, req.Sources, log))
	if err := run.Transition(domain.RunStateChunked, s.now()); err != nil {
		return run, err
	}
	telemetry.AddBreadcrumb(ctx, "attribution", fmt.Sprintf("chunked %d generated and %d source paragraphs", len(generated), len(sources)))

	entries, err := attributor.Attribute(ctx, generated, sources, threshold)
	if err != nil {
		run.Error = err.Error()
		span.SetError(err)
		return run, fmt.Errorf("failed to attribute document %s: %w", run.DocumentID, err)
	}
	if err := run.Transition(domain.RunStateEmbedded, s.now()); err != nil {
		return run, err
	}
	run.Entries = entries

	if len(generated) > 0 && run.UsableEntries() == 0 {
		if err := run.Fail(fmt.Errorf("no generated chunk could be embedded"), s.now()); err != nil {
			return run, err
		}
		log.Warn("attribution run failed", zap.String("reason", run.Error), zap.Int("chunks", len(generated)))
		telemetry.CaptureError(ctx, fmt.Errorf("attribution run %s failed: %s", run.ID, run.Error))
		s.persistFailed(ctx, run, log)
		s.snapshot(ctx, run, log)
		return run, nil
	}
	if err := run.Transition(domain.RunStateMatched, s.now()); err != nil {
		return run, err
	}

	if s.tx != nil {
		if err := s.persist(ctx, run); err != nil {
			_ = run.Fail(err, s.now())
			span.SetError(err)
			s.persistRun(ctx, run, log)
			return run, err
		}
	}
	s.snapshot(ctx, run, log)

	log.Info("attribution run complete",
		zap.String("state", string(run.State)),
		zap.Int("entries", len(run.Entries)),
		zap.Int("usable", run.UsableEntries()),
	)
	return run, nil
}

// RunForDocuments loads the generated and source documents from the store and
// runs attribution over them.
func (s *AttributionService) RunForDocuments(ctx context.Context, documentID string, sourceIDs []string, strategy domain.AttributionStrategy, threshold *float64) (*domain.AttributionRun, error) {
	if s.documents == nil {
		return nil, domain.NewConfigurationError("attribution by id requires a document store")
	}
	generated, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load generated document: %w", err)
	}
	sources, err := s.documents.GetByIDs(ctx, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load source documents: %w", err)
	}
	if missing := len(uniqueStrings(sourceIDs)) - len(sources); missing > 0 {
		s.logger.Warn("source documents missing",
			zap.String(logging.FieldDocumentID, documentID),
			zap.Int("missing", missing),
		)
	}
	return s.Run(ctx, AttributionRequest{
		Generated: generated,
		Sources:   sources,
		Strategy:  strategy,
		Threshold: threshold,
	})
}

// ListEntries returns the stored entries of a generated document.
func (s *AttributionService) ListEntries(ctx context.Context, documentID string) ([]domain.AttributionEntry, error) {
	if s.entries == nil {
		return nil, domain.NewConfigurationError("attribution store not configured")
	}
	return s.entries.ListByDocument(ctx, documentID)
}

func (s *AttributionService) usableSources(generatedID string, sources []*domain.Document, log *zap.Logger) []*domain.Document {
	out := make([]*domain.Document, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, d := range sources {
		if d == nil || d.ID == "" {
			continue
		}
		if d.ID == generatedID {
			log.Warn("skipping generated document listed as its own source")
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (s *AttributionService) persist(ctx context.Context, run *domain.AttributionRun) error {
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		store := repos.Attributions()
		for _, e := range run.Entries {
			if err := store.UpsertAttribution(ctx, run.ID, e); err != nil {
				return fmt.Errorf("failed to upsert attribution %s: %w", e.ChunkID(), err)
			}
		}
		if err := run.Transition(domain.RunStatePersisted, s.now()); err != nil {
			return err
		}
		if err := store.UpsertAttributionRun(ctx, run); err != nil {
			return fmt.Errorf("failed to upsert attribution run: %w", err)
		}
		return nil
	})
	if err != nil {
		if run.State == domain.RunStatePersisted {
			// The transaction rolled back; the run is matched again.
			run.State = domain.RunStateMatched
			run.History = run.History[:len(run.History)-1]
		}
		return fmt.Errorf("failed to persist attribution run: %w", err)
	}
	return nil
}

// persistFailed records a failed run together with its failed entries so
// readers see the per-chunk failures instead of an earlier run's entries.
func (s *AttributionService) persistFailed(ctx context.Context, run *domain.AttributionRun, log *zap.Logger) {
	if s.tx == nil {
		return
	}
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		store := repos.Attributions()
		for _, e := range run.Entries {
			if err := store.UpsertAttribution(ctx, run.ID, e); err != nil {
				return fmt.Errorf("failed to upsert attribution %s: %w", e.ChunkID(), err)
			}
		}
		return store.UpsertAttributionRun(ctx, run)
	})
	if err != nil {
		log.Warn("failed to record failed attribution run", zap.Error(err))
	}
}

// persistRun records a terminal run header outside the entry transaction.
func (s *AttributionService) persistRun(ctx context.Context, run *domain.AttributionRun, log *zap.Logger) {
	if s.tx == nil {
		return
	}
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Attributions().UpsertAttributionRun(ctx, run)
	})
	if err != nil {
		log.Warn("failed to record attribution run", zap.Error(err))
	}
}

func (s *AttributionService) snapshot(ctx context.Context, run *domain.AttributionRun, log *zap.Logger) {
	if s.archive == nil {
		return
	}
	if err := s.archive.PutJSON(ctx, AttributionRunSnapshotKey(run.ID), NewAttributionRunSnapshot(run)); err != nil {
		log.Warn("failed to archive attribution run", zap.Error(err))
	}
}
