package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
	"github.com/cloo-solutions/newsweave/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// AttributionJobRepository defines the interface for attribution job persistence
type AttributionJobRepository interface {
	// GetPendingJobs retrieves and claims pending attribution jobs
	GetPendingJobs(ctx context.Context) ([]*domain.AttributionJob, error)

	// UpdateJobStatus updates the status of an attribution job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.AttributionJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error

	// Complete marks a job completed with the run it produced
	Complete(ctx context.Context, jobID, runID string) error
}

// AttributionRunner runs one attribution pass over stored documents
type AttributionRunner interface {
	RunForDocuments(ctx context.Context, documentID string, sourceIDs []string, strategy domain.AttributionStrategy, threshold *float64) (*domain.AttributionRun, error)
}

// AttributionWorker processes attribution jobs
type AttributionWorker struct {
	repo   AttributionJobRepository
	runner AttributionRunner
	logger *zap.Logger
}

// NewAttributionWorker creates a new AttributionWorker instance
func NewAttributionWorker(repo AttributionJobRepository, runner AttributionRunner, logger *zap.Logger) *AttributionWorker {
	return &AttributionWorker{
		repo:   repo,
		runner: runner,
		logger: logging.Component(logger, "attribution-worker"),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *AttributionWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing pending attribution jobs", zap.Int("jobs", len(jobs)))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("error processing job", zap.String(logging.FieldJobID, job.ID), zap.Error(err))
		}
	}

	return nil
}

func (w *AttributionWorker) processJob(ctx context.Context, job *domain.AttributionJob) error {
	log := w.logger.With(
		zap.String(logging.FieldJobID, job.ID),
		zap.String(logging.FieldDocumentID, job.DocumentID),
	)
	ctx, span := telemetry.StartSpan(ctx, "attribution.job", telemetry.SpanAttributes{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		Operation:  string(job.Strategy),
	})
	defer span.End()

	threshold := job.Threshold
	run, err := w.runner.RunForDocuments(ctx, job.DocumentID, job.SourceDocumentIDs, job.Strategy, &threshold)
	if err == nil && run.State == domain.RunStateFailed {
		err = fmt.Errorf("attribution run %s failed: %s", run.ID, run.Error)
	}
	if err != nil {
		return w.handleJobFailure(ctx, job, err, log)
	}

	if err := w.repo.Complete(ctx, job.ID, run.ID); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Info("job completed", zap.String(logging.FieldRunID, run.ID), zap.String("state", string(run.State)))
	return nil
}

// handleJobFailure handles a failed job with retry logic. Configuration and
// validation errors are not retried.
func (w *AttributionWorker) handleJobFailure(ctx context.Context, job *domain.AttributionJob, jobErr error, log *zap.Logger) error {
	log.Warn("job failed", zap.Error(jobErr))

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries || !retryable(jobErr) {
		log.Warn("marking job as failed", zap.Int32("retries", job.Retries+1), zap.Int("max_retries", MaxRetries))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if !retryable(jobErr) {
			errMsg = jobErr.Error()
		}
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.AttributionJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Info("job will be retried", zap.Int32("attempt", job.Retries+1), zap.Int("max_retries", MaxRetries))
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.AttributionJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

func retryable(err error) bool {
	return !domain.IsConfiguration(err) &&
		!domain.HasCode(err, domain.ErrCodeValidation) &&
		!domain.HasCode(err, domain.ErrCodeNotFound)
}
