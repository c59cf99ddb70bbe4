package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// AttributionJobRepositoryInterface defines the repository interface for attribution job persistence
type AttributionJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.AttributionJob) error
	GetByID(ctx context.Context, id string) (*domain.AttributionJob, error)
}

// SubmitAttributionInput is an asynchronous attribution request.
type SubmitAttributionInput struct {
	DocumentID        string
	SourceDocumentIDs []string
	Strategy          domain.AttributionStrategy
	Threshold         *float64
}

// AttributionJobService queues attribution runs for the worker.
type AttributionJobService struct {
	jobs             AttributionJobRepositoryInterface
	documents        DocumentReader
	defaultStrategy  domain.AttributionStrategy
	defaultThreshold float64
	uuidGen          UUIDGenerator
}

// NewAttributionJobService creates a new AttributionJobService instance
func NewAttributionJobService(
	jobs AttributionJobRepositoryInterface,
	documents DocumentReader,
	defaultStrategy domain.AttributionStrategy,
	defaultThreshold float64,
) *AttributionJobService {
	return &AttributionJobService{
		jobs:             jobs,
		documents:        documents,
		defaultStrategy:  defaultStrategy,
		defaultThreshold: defaultThreshold,
		uuidGen:          &DefaultUUIDGenerator{},
	}
}

// NewAttributionJobServiceWithUUIDGen creates a new AttributionJobService with custom UUID generator (for testing)
func NewAttributionJobServiceWithUUIDGen(
	jobs AttributionJobRepositoryInterface,
	documents DocumentReader,
	defaultStrategy domain.AttributionStrategy,
	defaultThreshold float64,
	uuidGen UUIDGenerator,
) *AttributionJobService {
	s := NewAttributionJobService(jobs, documents, defaultStrategy, defaultThreshold)
	s.uuidGen = uuidGen
	return s
}

// Submit validates the request and queues a pending job. The generated
// document must already be stored.
func (s *AttributionJobService) Submit(ctx context.Context, input SubmitAttributionInput) (*domain.AttributionJob, error) {
	strategy := input.Strategy
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	threshold := s.defaultThreshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}

	job := domain.NewAttributionJob(s.uuidGen.NewString(), input.DocumentID, uniqueStrings(input.SourceDocumentIDs),
		strategy, threshold, time.Now().UTC())
	if err := domain.ValidateAttributionJob(job); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid attribution request", err)
	}

	if s.documents != nil {
		if _, err := s.documents.GetByID(ctx, job.DocumentID); err != nil {
			return nil, err
		}
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create attribution job: %w", err)
	}
	return job, nil
}

// Get returns a job by id.
func (s *AttributionJobService) Get(ctx context.Context, id string) (*domain.AttributionJob, error) {
	return s.jobs.GetByID(ctx, id)
}
