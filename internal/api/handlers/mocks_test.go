package handlers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/pagination"
	"github.com/cloo-solutions/newsweave/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Ingest(ctx context.Context, records []domain.DocumentRecord) (*service.IngestResult, error) {
	args := m.Called(ctx, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

type MockClusterService struct {
	mock.Mock
}

func (m *MockClusterService) RunWindow(ctx context.Context, since time.Time, params service.ClusterParams) (*domain.ClusterRun, error) {
	args := m.Called(ctx, since, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClusterRun), args.Error(1)
}

func (m *MockClusterService) RunDocuments(ctx context.Context, ids []string, params service.ClusterParams) (*domain.ClusterRun, error) {
	args := m.Called(ctx, ids, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClusterRun), args.Error(1)
}

func (m *MockClusterService) GetRun(ctx context.Context, id string) (*domain.ClusterRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClusterRun), args.Error(1)
}

func (m *MockClusterService) ListRuns(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.ClusterRun], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.ClusterRun]), args.Error(1)
}

type MockAttributionJobService struct {
	mock.Mock
}

func (m *MockAttributionJobService) Submit(ctx context.Context, input service.SubmitAttributionInput) (*domain.AttributionJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttributionJob), args.Error(1)
}

func (m *MockAttributionJobService) Get(ctx context.Context, id string) (*domain.AttributionJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttributionJob), args.Error(1)
}

type MockAttributionEntryLister struct {
	mock.Mock
}

func (m *MockAttributionEntryLister) ListEntries(ctx context.Context, documentID string) ([]domain.AttributionEntry, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AttributionEntry), args.Error(1)
}
