package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/cluster"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
	"github.com/cloo-solutions/newsweave/internal/pagination"
	"github.com/cloo-solutions/newsweave/internal/telemetry"
	"github.com/cloo-solutions/newsweave/internal/textnorm"
	"github.com/cloo-solutions/newsweave/internal/vectorize"
)

const (
	DefaultClusterRunPageSize = 20
	MaxClusterRunPageSize     = 100
)

// ClusterParams are the density parameters of one clustering run.
type ClusterParams struct {
	Eps        float64
	MinSamples int
}

// DocumentReader loads documents for clustering and attribution.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Document, error)
	ListSince(ctx context.Context, since time.Time) ([]*domain.Document, error)
}

// ClusterRunReader reads persisted cluster runs.
type ClusterRunReader interface {
	GetRun(ctx context.Context, id string) (*domain.ClusterRun, error)
	// ListRuns returns run headers newest first, without cluster members.
	ListRuns(ctx context.Context, after *pagination.Cursor, limit int) ([]*domain.ClusterRun, error)
}

// ClusterServiceDeps wires a ClusterService. Only Normalizer is required;
// without Tx runs are computed but not persisted.
type ClusterServiceDeps struct {
	Normalizer *textnorm.Normalizer
	Vectorizer vectorize.TFIDF
	Documents  DocumentReader
	Runs       ClusterRunReader
	Tx         TxRunner
	Archive    SnapshotArchiver
	UUIDGen    UUIDGenerator
	Logger     *zap.Logger
	Now        func() time.Time
}

// ClusterService groups documents into stories and records each run as a new
// generation.
type ClusterService struct {
	normalizer *textnorm.Normalizer
	vectorizer vectorize.TFIDF
	engine     *cluster.Engine
	documents  DocumentReader
	runs       ClusterRunReader
	tx         TxRunner
	archive    SnapshotArchiver
	uuidGen    UUIDGenerator
	logger     *zap.Logger
	now        func() time.Time
}

// NewClusterService creates a new ClusterService instance
func NewClusterService(deps ClusterServiceDeps) *ClusterService {
	s := &ClusterService{
		normalizer: deps.Normalizer,
		vectorizer: deps.Vectorizer,
		documents:  deps.Documents,
		runs:       deps.Runs,
		tx:         deps.Tx,
		archive:    deps.Archive,
		uuidGen:    deps.UUIDGen,
		logger:     logging.Component(deps.Logger, "cluster-service"),
		now:        deps.Now,
	}
	if s.normalizer == nil {
		s.normalizer = textnorm.NewDefault()
	}
	if s.vectorizer == (vectorize.TFIDF{}) {
		s.vectorizer = vectorize.DefaultTFIDF()
	}
	if s.uuidGen == nil {
		s.uuidGen = &DefaultUUIDGenerator{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	s.engine = cluster.NewEngine(s.logger)
	return s
}

// Run clusters docs and persists the resulting generation. Nil documents,
// documents without an id and repeated ids are skipped with a warning.
func (s *ClusterService) Run(ctx context.Context, docs []*domain.Document, params ClusterParams) (*domain.ClusterRun, error) {
	if err := cluster.ValidateParams(params.Eps, params.MinSamples); err != nil {
		return nil, err
	}

	runID := s.uuidGen.NewString()
	ctx, span := telemetry.StartSpan(ctx, "cluster.run", telemetry.SpanAttributes{
		RunID:     runID,
		Operation: "cluster",
	})
	defer span.End()

	log := s.logger.With(zap.String(logging.FieldRunID, runID))
	docs = s.usableDocuments(docs, log)

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		texts[i] = d.Text
	}

	matrix := s.vectorizer.FitTransform(s.normalizer.NormalizeAll(texts))
	assignments, err := s.engine.Cluster(ids, matrix.Vectors, params.Eps, params.MinSamples)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to cluster documents: %w", err)
	}

	run := domain.NewClusterRun(runID, params.Eps, params.MinSamples, assignments, s.now())
	if err := domain.ValidateClusterRun(run, ids); err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetData("documents", len(ids))
	span.SetData("stories", len(run.Stories()))

	if err := s.persist(ctx, run); err != nil {
		span.SetError(err)
		return nil, err
	}
	s.snapshot(ctx, run, log)

	log.Info("cluster run complete",
		zap.Int("documents", len(ids)),
		zap.Int("vocabulary", len(matrix.Vocabulary)),
		zap.Int("stories", len(run.Stories())),
		zap.Int("noise", len(run.NoiseIDs())),
	)
	return run, nil
}

// RunWindow clusters every stored document with a timestamp at or after since.
func (s *ClusterService) RunWindow(ctx context.Context, since time.Time, params ClusterParams) (*domain.ClusterRun, error) {
	if s.documents == nil {
		return nil, domain.NewConfigurationError("cluster window requires a document store")
	}
	docs, err := s.documents.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return s.Run(ctx, docs, params)
}

// RunDocuments clusters the stored documents with the given ids.
func (s *ClusterService) RunDocuments(ctx context.Context, ids []string, params ClusterParams) (*domain.ClusterRun, error) {
	if s.documents == nil {
		return nil, domain.NewConfigurationError("clustering by id requires a document store")
	}
	docs, err := s.documents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) != len(uniqueStrings(ids)) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, domain.ErrDocumentNotFound.Message,
			fmt.Errorf("found %d of %d documents", len(docs), len(uniqueStrings(ids))))
	}
	return s.Run(ctx, docs, params)
}

// GetRun returns a persisted run with its clusters.
func (s *ClusterService) GetRun(ctx context.Context, id string) (*domain.ClusterRun, error) {
	if s.runs == nil {
		return nil, domain.NewConfigurationError("cluster run store not configured")
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns one page of run headers.
func (s *ClusterService) ListRuns(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.ClusterRun], error) {
	if s.runs == nil {
		return nil, domain.NewConfigurationError("cluster run store not configured")
	}
	if limit <= 0 {
		limit = DefaultClusterRunPageSize
	}
	if limit > MaxClusterRunPageSize {
		limit = MaxClusterRunPageSize
	}
	after, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	runs, err := s.runs.ListRuns(ctx, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list cluster runs: %w", err)
	}
	page := pagination.Paginate(runs, limit,
		func(r *domain.ClusterRun) string { return r.ID },
		func(r *domain.ClusterRun) time.Time { return r.CreatedAt },
	)
	return &page, nil
}

func (s *ClusterService) usableDocuments(docs []*domain.Document, log *zap.Logger) []*domain.Document {
	out := make([]*domain.Document, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if d == nil || d.ID == "" {
			log.Warn("skipping document without id", zap.Int("position", i))
			continue
		}
		if _, dup := seen[d.ID]; dup {
			log.Warn("skipping duplicate document", zap.String(logging.FieldDocumentID, d.ID))
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (s *ClusterService) persist(ctx context.Context, run *domain.ClusterRun) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		store := repos.ClusterRuns()
		if err := store.CreateRun(ctx, run); err != nil {
			return fmt.Errorf("failed to create cluster run: %w", err)
		}
		for _, c := range run.Clusters {
			if err := store.UpsertCluster(ctx, run.ID, c.ID, c.MemberIDs); err != nil {
				return fmt.Errorf("failed to upsert cluster %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist cluster run: %w", err)
	}
	return nil
}

func (s *ClusterService) snapshot(ctx context.Context, run *domain.ClusterRun, log *zap.Logger) {
	if s.archive == nil {
		return
	}
	if err := s.archive.PutJSON(ctx, ClusterRunSnapshotKey(run.ID), NewClusterRunSnapshot(run)); err != nil {
		log.Warn("failed to archive cluster run", zap.Error(err))
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
