//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/pagination"
	"github.com/cloo-solutions/newsweave/internal/service"
	"github.com/cloo-solutions/newsweave/internal/testutil"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	return testutil.NewTestPool(ctx, t, pc, "../../migrations")
}

func testTime() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func TestDocumentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupPool(ctx, t))
	now := testTime()

	created, err := repo.Create(ctx, domain.NewDocument("a", "Inflation rose 3%.", now, "wire"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, domain.NewDocument("a", "changed", now, "wire"))
	require.NoError(t, err)
	assert.False(t, created, "documents are immutable")

	_, err = repo.Create(ctx, domain.NewDocument("b", "old", now.Add(-72*time.Hour), ""))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Inflation rose 3%.", got.Text)
	assert.True(t, now.Equal(got.Timestamp))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	recent, err := repo.ListSince(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "a", recent[0].ID)

	some, err := repo.GetByIDs(ctx, []string{"b", "a", "x"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "a", some[0].ID)
}

func TestClusterRunRepository(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	tx := NewTxRunner(pool)
	repo := NewClusterRunRepository(pool)
	base := testTime()

	var ids []string
	for i := 0; i < 3; i++ {
		run := domain.NewClusterRun(uuid.NewString(), 0.4, 2,
			map[string]string{"A": "story-001", "B": "story-001", "C": domain.NoiseClusterID},
			base.Add(time.Duration(i)*time.Minute))
		err := tx.WithTx(ctx, func(repos service.TxRepositories) error {
			store := repos.ClusterRuns()
			if err := store.CreateRun(ctx, run); err != nil {
				return err
			}
			for _, c := range run.Clusters {
				if err := store.UpsertCluster(ctx, run.ID, c.ID, c.MemberIDs); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	t.Run("upsert is idempotent", func(t *testing.T) {
		require.NoError(t, repo.UpsertCluster(ctx, ids[0], "story-001", []string{"A", "B"}))

		run, err := repo.GetRun(ctx, ids[0])
		require.NoError(t, err)
		require.Len(t, run.Clusters, 2)
		assert.Equal(t, "story-001", run.Clusters[0].ID)
		assert.Equal(t, []string{"A", "B"}, run.Clusters[0].MemberIDs)
		assert.True(t, run.Clusters[1].Noise)
		assert.Equal(t, []string{"C"}, run.Clusters[1].MemberIDs)
		assert.NoError(t, domain.ValidateClusterRun(run, []string{"A", "B", "C"}))
	})

	t.Run("lists newest first with a cursor", func(t *testing.T) {
		first, err := repo.ListRuns(ctx, nil, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, ids[2], first[0].ID)
		assert.Equal(t, ids[1], first[1].ID)

		cursor, err := pagination.DecodeCursor(pagination.EncodeCursor(first[1].ID, first[1].CreatedAt))
		require.NoError(t, err)
		rest, err := repo.ListRuns(ctx, cursor, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, ids[0], rest[0].ID)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := repo.GetRun(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrClusterRunNotFound)
	})
}

func TestAttributionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAttributionRepository(setupPool(ctx, t))
	runID := uuid.NewString()

	matched := domain.NewAttributionEntry(domain.ChunkID{DocumentID: "G", Index: 1}, map[string]float64{"A": 0.9, "B": 0.8})
	failed := domain.NewFailedAttributionEntry(domain.ChunkID{DocumentID: "G", Index: 2}, domain.ErrMissingEmbedding)

	require.NoError(t, repo.UpsertAttribution(ctx, runID, failed))
	require.NoError(t, repo.UpsertAttribution(ctx, runID, matched))
	require.NoError(t, repo.UpsertAttribution(ctx, runID, matched))

	entries, err := repo.ListByDocument(ctx, "G")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"A", "B"}, entries[0].SourceIDs())
	assert.Equal(t, domain.EntryStatusMatched, entries[0].Status)
	assert.Equal(t, domain.EntryStatusFailed, entries[1].Status)
	assert.NotEmpty(t, entries[1].Error)
	assert.Empty(t, entries[1].Sources)

	run := domain.NewAttributionRun(runID, "G", domain.StrategySimilarity, 0.75, testTime())
	require.NoError(t, repo.UpsertAttributionRun(ctx, run))
	require.NoError(t, run.Transition(domain.RunStateChunked, testTime()))
	assert.NoError(t, repo.UpsertAttributionRun(ctx, run))
}

func TestAttributionJobRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAttributionJobRepository(setupPool(ctx, t))

	job := domain.NewAttributionJob(uuid.NewString(), "G", []string{"A", "C"}, domain.StrategySimilarity, 0.75, testTime())
	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, got.SourceDocumentIDs)
	assert.Equal(t, domain.AttributionJobStatusPending, got.Status)
	assert.Nil(t, got.ProcessedAt)

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.AttributionJobStatusProcessing, claimed[0].Status)

	again, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	runID := uuid.NewString()
	require.NoError(t, repo.Complete(ctx, job.ID, runID))

	got, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttributionJobStatusCompleted, got.Status)
	assert.Equal(t, int32(1), got.Retries)
	assert.Equal(t, runID, got.RunID)
	assert.NotNil(t, got.ProcessedAt)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAttributionJobNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.NewString(), domain.AttributionJobStatusFailed, "x"), domain.ErrAttributionJobNotFound)
}

func TestChunkEmbeddingRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewChunkEmbeddingRepository(setupPool(ctx, t))
	chunks := []domain.Chunk{
		{DocumentID: "A", Index: 1, Text: "Inflation rose 3%."},
		{DocumentID: "A", Index: 2, Text: "Markets fell."},
	}

	require.NoError(t, repo.StoreEmbeddings(ctx, "model-a", chunks, [][]float32{{0.1, 0.2, 0.3}, nil}))

	got, err := repo.LookupEmbeddings(ctx, "model-a", chunks)
	require.NoError(t, err)
	assert.Equal(t, map[domain.ChunkID][]float32{{DocumentID: "A", Index: 1}: {0.1, 0.2, 0.3}}, got)

	edited := []domain.Chunk{{DocumentID: "A", Index: 1, Text: "Inflation rose 4%."}}
	got, err = repo.LookupEmbeddings(ctx, "model-a", edited)
	require.NoError(t, err)
	assert.Empty(t, got, "changed text invalidates the cached vector")

	got, err = repo.LookupEmbeddings(ctx, "model-b", chunks)
	require.NoError(t, err)
	assert.Empty(t, got, "vectors from another model are not reused")
}
