package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

type testTxRepos struct {
	clusterRuns  ClusterRunStore
	attributions AttributionStore
}

func (t *testTxRepos) ClusterRuns() ClusterRunStore {
	return t.clusterRuns
}

func (t *testTxRepos) Attributions() AttributionStore {
	return t.attributions
}

type testTxRunner struct {
	repos  TxRepositories
	called int
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called++
	return fn(t.repos)
}

type MockClusterRunStore struct {
	mock.Mock
}

func (m *MockClusterRunStore) CreateRun(ctx context.Context, run *domain.ClusterRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockClusterRunStore) UpsertCluster(ctx context.Context, runID, clusterID string, memberIDs []string) error {
	args := m.Called(ctx, runID, clusterID, memberIDs)
	return args.Error(0)
}

type MockAttributionStore struct {
	mock.Mock
}

func (m *MockAttributionStore) UpsertAttribution(ctx context.Context, runID string, entry domain.AttributionEntry) error {
	args := m.Called(ctx, runID, entry)
	return args.Error(0)
}

func (m *MockAttributionStore) UpsertAttributionRun(ctx context.Context, run *domain.AttributionRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) (bool, error) {
	args := m.Called(ctx, doc)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Document, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.Document, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) PutJSON(ctx context.Context, key string, v any) error {
	args := m.Called(ctx, key, v)
	return args.Error(0)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func doc(id, text string) *domain.Document {
	return domain.NewDocument(id, text, testNow, "test")
}
