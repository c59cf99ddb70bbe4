package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/pagination"
	"github.com/cloo-solutions/newsweave/internal/service"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "newsweave.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveRun(t *testing.T, store *Store, run *domain.ClusterRun) {
	t.Helper()
	err := store.WithTx(context.Background(), func(repos service.TxRepositories) error {
		w := repos.ClusterRuns()
		if err := w.CreateRun(context.Background(), run); err != nil {
			return err
		}
		for _, c := range run.Clusters {
			if err := w.UpsertCluster(context.Background(), run.ID, c.ID, c.MemberIDs); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestStore_Documents(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := store.Create(ctx, domain.NewDocument("a", "Inflation rose 3%.", now, "wire"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Create(ctx, domain.NewDocument("a", "other", now, "wire"))
	require.NoError(t, err)
	assert.False(t, created)

	_, err = store.Create(ctx, domain.NewDocument("b", "old", now.Add(-72*time.Hour), ""))
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Inflation rose 3%.", got.Text)
	assert.True(t, now.Equal(got.Timestamp))

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	recent, err := store.ListSince(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "a", recent[0].ID)

	some, err := store.GetByIDs(ctx, []string{"b", "x", "a", "b"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "a", some[0].ID)
	assert.Equal(t, "b", some[1].ID)
}

func TestStore_ClusterRuns(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assignments := map[string]string{"A": "story-001", "B": "story-001", "C": domain.NoiseClusterID}

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		saveRun(t, store, domain.NewClusterRun(id, 0.4, 2, assignments, base.Add(time.Duration(i)*time.Second)))
	}

	run, err := store.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, assignments, run.Assignments())
	assert.NoError(t, domain.ValidateClusterRun(run, []string{"A", "B", "C"}))
	assert.True(t, run.Clusters[len(run.Clusters)-1].Noise)

	first, err := store.ListRuns(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "run-3", first[0].ID)
	assert.Equal(t, "run-2", first[1].ID)

	rest, err := store.ListRuns(ctx, &pagination.Cursor{LastID: first[1].ID, Timestamp: first[1].CreatedAt}, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "run-1", rest[0].ID)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrClusterRunNotFound)
}

func TestStore_Attributions(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	run := domain.NewAttributionRun("run-1", "G", domain.StrategySimilarity, 0.75, time.Now().UTC())
	matched := domain.NewAttributionEntry(domain.ChunkID{DocumentID: "G", Index: 1}, map[string]float64{"A": 0.9})
	unmatched := domain.NewAttributionEntry(domain.ChunkID{DocumentID: "G", Index: 2}, nil)

	for i := 0; i < 2; i++ {
		err := store.WithTx(ctx, func(repos service.TxRepositories) error {
			w := repos.Attributions()
			if err := w.UpsertAttribution(ctx, run.ID, unmatched); err != nil {
				return err
			}
			if err := w.UpsertAttribution(ctx, run.ID, matched); err != nil {
				return err
			}
			return w.UpsertAttributionRun(ctx, run)
		})
		require.NoError(t, err)
	}

	entries, err := store.ListByDocument(ctx, "G")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"A"}, entries[0].SourceIDs())
	assert.InDelta(t, 0.9, entries[0].Sources[0].Similarity, 1e-9)
	assert.Equal(t, domain.EntryStatusUnmatched, entries[1].Status)
	assert.Empty(t, entries[1].Sources)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.WithTx(ctx, func(repos service.TxRepositories) error {
		run := domain.NewClusterRun("run-1", 0.4, 2, map[string]string{}, time.Now().UTC())
		if err := repos.ClusterRuns().CreateRun(ctx, run); err != nil {
			return err
		}
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	_, err = store.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrClusterRunNotFound)
}
