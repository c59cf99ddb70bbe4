//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/newsweave/internal/api/handlers"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/service"
)

var corpus = []map[string]string{
	{"id": "rates-1", "text": "Central bank raises interest rates to fight inflation", "timestamp": "2024-03-01T08:00:00Z"},
	{"id": "rates-2", "text": "Inflation fight: central bank raises interest rates again", "timestamp": "2024-03-01T09:00:00Z"},
	{"id": "rates-3", "text": "Central bank interest rates rise as inflation persists", "timestamp": "2024-03-01T09:30:00Z"},
	{"id": "final-1", "text": "Local team wins football championship final", "timestamp": "2024-03-01T10:00:00Z"},
	{"id": "final-2", "text": "Football championship final won by local team", "timestamp": "2024-03-01T11:00:00Z"},
	{"id": "comet", "text": "Astronomers spot a comet near Jupiter", "timestamp": "2024-03-01T12:00:00Z"},
}

func writeCorpus(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	for _, doc := range corpus {
		line, err := json.Marshal(doc)
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	path := filepath.Join(dir, "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestE2E_HealthAndAuth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := http.Get(env.ServerURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.ServerURL+"/cluster-runs", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = env.HTTPClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestE2E_IngestAndCluster(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/documents", corpus)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var ingest service.IngestResult
	require.NoError(t, json.Unmarshal(resp.Data, &ingest))
	assert.Len(t, ingest.Created, len(corpus))

	t.Run("re-ingest leaves documents untouched", func(t *testing.T) {
		resp, err := env.Post("/documents", corpus[:2])
		require.NoError(t, err)
		var again service.IngestResult
		require.NoError(t, json.Unmarshal(resp.Data, &again))
		assert.Empty(t, again.Created)
		assert.ElementsMatch(t, []string{"rates-1", "rates-2"}, again.Existing)
	})

	var run service.ClusterRunSnapshot
	t.Run("cluster by id", func(t *testing.T) {
		ids := make([]string, len(corpus))
		for i, doc := range corpus {
			ids[i] = doc["id"]
		}
		resp, err := env.Post("/cluster-runs", map[string]any{"document_ids": ids})
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.Unmarshal(resp.Data, &run))

		assert.Equal(t, len(corpus), run.DocumentCount)
		covered := map[string]int{}
		for _, c := range run.Clusters {
			for _, id := range c.MemberIDs {
				covered[id]++
			}
		}
		assert.Len(t, covered, len(corpus))
		for id, n := range covered {
			assert.Equal(t, 1, n, "document %s assigned %d times", id, n)
		}
	})

	t.Run("run is persisted and listed", func(t *testing.T) {
		resp, err := env.Get("/cluster-runs/" + run.ID)
		require.NoError(t, err)
		var fetched service.ClusterRunSnapshot
		require.NoError(t, json.Unmarshal(resp.Data, &fetched))
		assert.ElementsMatch(t, run.Clusters, fetched.Clusters)

		resp, err = env.Get("/cluster-runs?limit=5")
		require.NoError(t, err)
		var page handlers.ListClusterRunsResponse
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.NotEmpty(t, page.Items)
		assert.Equal(t, run.ID, page.Items[0].ID)
	})

	t.Run("run is archived", func(t *testing.T) {
		var archived service.ClusterRunSnapshot
		require.NoError(t, env.S3Client.GetJSON(env.Ctx, service.ClusterRunSnapshotKey(run.ID), &archived))
		assert.Equal(t, run.ID, archived.ID)
		assert.Equal(t, run.DocumentCount, archived.DocumentCount)
	})

	t.Run("unknown run", func(t *testing.T) {
		resp, err := env.Get("/cluster-runs/does-not-exist")
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestE2E_AttributionJob(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	docs := append([]map[string]string{}, corpus...)
	docs = append(docs, map[string]string{
		"id":        "summary",
		"text":      "The central bank raises interest rates to fight inflation.\n\nA local team wins the football championship final.\n\nNothing here relates to anything else whatsoever.",
		"timestamp": "2024-03-02T08:00:00Z",
	})
	_, err := env.Post("/documents", docs)
	require.NoError(t, err)

	resp, err := env.Post("/attributions", map[string]any{
		"document_id":         "summary",
		"source_document_ids": []string{"rates-1", "final-1", "comet"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var job handlers.AttributionJobResponse
	require.NoError(t, json.Unmarshal(resp.Data, &job))
	assert.Equal(t, string(domain.AttributionJobStatusPending), job.Status)

	done := env.WaitForJob(job.ID, 30*time.Second)
	require.Equal(t, string(domain.AttributionJobStatusCompleted), done.Status, done.Error)
	require.NotEmpty(t, done.RunID)

	resp, err = env.Get("/attributions/summary")
	require.NoError(t, err)
	var entries handlers.AttributionEntriesResponse
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries.Entries, 3)

	byIndex := map[int]service.AttributionEntrySnapshot{}
	for _, e := range entries.Entries {
		byIndex[e.ChunkIndex] = e
	}
	assert.Contains(t, sourceIDs(byIndex[1]), "rates-1")
	assert.Contains(t, sourceIDs(byIndex[2]), "final-1")
	assert.Empty(t, byIndex[3].Sources)
	assert.Equal(t, domain.EntryStatusUnmatched, byIndex[3].Status)

	var archived service.AttributionRunSnapshot
	require.NoError(t, env.S3Client.GetJSON(env.Ctx, service.AttributionRunSnapshotKey(done.RunID), &archived))
	assert.Equal(t, "summary", archived.DocumentID)
}

func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	workDir := t.TempDir()
	input := writeCorpus(t, workDir)

	t.Run("push", func(t *testing.T) {
		out, err := env.RunNewsweave(workDir, "remote", "push", "-i", input)
		require.NoError(t, err, out)
		assert.Contains(t, out, "Created 6")

		out, err = env.RunNewsweave(workDir, "remote", "push", "-i", input)
		require.NoError(t, err, out)
		assert.Contains(t, out, "already present 6")
	})

	var runID string
	t.Run("cluster", func(t *testing.T) {
		out, err := env.RunNewsweave(workDir, "remote", "cluster", "--since", "2024-01-01T00:00:00Z", "-o", "json")
		require.NoError(t, err, out)
		var run service.ClusterRunSnapshot
		require.NoError(t, json.Unmarshal([]byte(out), &run))
		assert.Equal(t, len(corpus), run.DocumentCount)
		runID = run.ID
	})

	t.Run("runs", func(t *testing.T) {
		out, err := env.RunNewsweave(workDir, "remote", "runs")
		require.NoError(t, err, out)
		assert.Contains(t, out, runID)

		out, err = env.RunNewsweave(workDir, "remote", "runs", runID)
		require.NoError(t, err, out)
		assert.Contains(t, out, "rates-1")
	})

	t.Run("local cluster needs no server", func(t *testing.T) {
		out, err := env.RunNewsweave(workDir, "cluster", "-i", input, "-o", "json")
		require.NoError(t, err, out)
		var run service.ClusterRunSnapshot
		require.NoError(t, json.Unmarshal([]byte(out), &run))
		assert.Equal(t, len(corpus), run.DocumentCount)
	})
}

func sourceIDs(e service.AttributionEntrySnapshot) []string {
	ids := make([]string, len(e.Sources))
	for i, s := range e.Sources {
		ids[i] = s.DocumentID
	}
	return ids
}
