package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/pagination"
)

type ClusterRunRepository struct {
	db dbtx
}

func NewClusterRunRepository(pool *pgxpool.Pool) *ClusterRunRepository {
	return &ClusterRunRepository{db: pool}
}

func NewClusterRunRepositoryWithTx(tx pgx.Tx) *ClusterRunRepository {
	return &ClusterRunRepository{db: tx}
}

func (r *ClusterRunRepository) CreateRun(ctx context.Context, run *domain.ClusterRun) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cluster_runs (id, eps, min_samples, document_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		     eps = EXCLUDED.eps,
		     min_samples = EXCLUDED.min_samples,
		     document_count = EXCLUDED.document_count`,
		run.ID, run.Eps, run.MinSamples, run.DocumentCount, run.CreatedAt,
	)
	return err
}

func (r *ClusterRunRepository) UpsertCluster(ctx context.Context, runID, clusterID string, memberIDs []string) error {
	if memberIDs == nil {
		memberIDs = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO clusters (run_id, cluster_id, noise, member_ids)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, cluster_id) DO UPDATE SET
		     noise = EXCLUDED.noise,
		     member_ids = EXCLUDED.member_ids`,
		runID, clusterID, clusterID == domain.NoiseClusterID, memberIDs,
	)
	return err
}

func (r *ClusterRunRepository) GetRun(ctx context.Context, id string) (*domain.ClusterRun, error) {
	var run domain.ClusterRun
	err := r.db.QueryRow(ctx,
		`SELECT id, eps, min_samples, document_count, created_at FROM cluster_runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Eps, &run.MinSamples, &run.DocumentCount, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClusterRunNotFound
		}
		return nil, err
	}
	run.CreatedAt = run.CreatedAt.UTC()

	rows, err := r.db.Query(ctx,
		`SELECT cluster_id, noise, member_ids FROM clusters WHERE run_id = $1 ORDER BY noise, cluster_id`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c := domain.Cluster{RunID: run.ID}
		if err := rows.Scan(&c.ID, &c.Noise, &c.MemberIDs); err != nil {
			return nil, err
		}
		run.Clusters = append(run.Clusters, c)
	}
	return &run, rows.Err()
}

// ListRuns returns run headers newest first, starting after the cursor.
func (r *ClusterRunRepository) ListRuns(ctx context.Context, after *pagination.Cursor, limit int) ([]*domain.ClusterRun, error) {
	var rows pgx.Rows
	var err error
	if after == nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, eps, min_samples, document_count, created_at
			 FROM cluster_runs
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, eps, min_samples, document_count, created_at
			 FROM cluster_runs
			 WHERE (created_at, id) < ($1, $2::uuid)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			after.Timestamp, after.LastID, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.ClusterRun{}
	for rows.Next() {
		var run domain.ClusterRun
		if err := rows.Scan(&run.ID, &run.Eps, &run.MinSamples, &run.DocumentCount, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.CreatedAt = run.CreatedAt.UTC()
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
