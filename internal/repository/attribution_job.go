package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

const attributionJobColumns = `id, document_id, source_document_ids, strategy, threshold, status, retries, error, run_id, created_at, processed_at`

type AttributionJobRepository struct {
	db dbtx
}

func NewAttributionJobRepository(pool *pgxpool.Pool) *AttributionJobRepository {
	return &AttributionJobRepository{db: pool}
}

func NewAttributionJobRepositoryWithTx(tx pgx.Tx) *AttributionJobRepository {
	return &AttributionJobRepository{db: tx}
}

func (r *AttributionJobRepository) Create(ctx context.Context, job *domain.AttributionJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO attribution_jobs (id, document_id, source_document_ids, strategy, threshold, status, retries, error, run_id, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.DocumentID, job.SourceDocumentIDs, job.Strategy, job.Threshold, job.Status, job.Retries,
		nullableString(job.Error), nullableString(job.RunID), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *AttributionJobRepository) GetByID(ctx context.Context, id string) (*domain.AttributionJob, error) {
	job, err := scanAttributionJob(r.db.QueryRow(ctx,
		`SELECT `+attributionJobColumns+` FROM attribution_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAttributionJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit pending jobs to processing and returns them.
// Concurrent workers never claim the same job.
func (r *AttributionJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.AttributionJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM attribution_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE attribution_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE attribution_jobs.id = cte.id
		 RETURNING attribution_jobs.id, attribution_jobs.document_id, attribution_jobs.source_document_ids,
		           attribution_jobs.strategy, attribution_jobs.threshold, attribution_jobs.status,
		           attribution_jobs.retries, attribution_jobs.error, attribution_jobs.run_id,
		           attribution_jobs.created_at, attribution_jobs.processed_at`,
		domain.AttributionJobStatusPending, limit, domain.AttributionJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.AttributionJob
	for rows.Next() {
		job, err := scanAttributionJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *AttributionJobRepository) UpdateStatus(ctx context.Context, id string, status domain.AttributionJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.AttributionJobStatusCompleted || status == domain.AttributionJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE attribution_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAttributionJobNotFound
	}
	return nil
}

// Complete marks the job completed and links the run it produced.
func (r *AttributionJobRepository) Complete(ctx context.Context, id, runID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE attribution_jobs SET status = $1, error = NULL, run_id = $2, processed_at = $3 WHERE id = $4`,
		domain.AttributionJobStatusCompleted, runID, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAttributionJobNotFound
	}
	return nil
}

func (r *AttributionJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE attribution_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAttributionJobNotFound
	}
	return nil
}

func (r *AttributionJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.AttributionJob, error) {
	return r.ClaimPending(ctx, 100)
}

func (r *AttributionJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.AttributionJobStatus, errMsg string) error {
	return r.UpdateStatus(ctx, jobID, status, errMsg)
}

func scanAttributionJob(row pgx.Row) (*domain.AttributionJob, error) {
	var job domain.AttributionJob
	var errMsg, runID pgtype.Text
	err := row.Scan(&job.ID, &job.DocumentID, &job.SourceDocumentIDs, &job.Strategy, &job.Threshold, &job.Status,
		&job.Retries, &errMsg, &runID, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if runID.Valid {
		job.RunID = runID.String
	}
	return &job, nil
}
