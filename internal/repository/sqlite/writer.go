package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

type sourceJSON struct {
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

type transitionJSON struct {
	State domain.RunState `json:"state"`
	At    time.Time       `json:"at"`
}

// writer implements the transactional store contracts.
type writer struct {
	q queryer
}

func (w *writer) CreateRun(ctx context.Context, run *domain.ClusterRun) error {
	_, err := w.q.ExecContext(ctx,
		`INSERT INTO cluster_runs (id, eps, min_samples, document_count, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     eps = excluded.eps,
		     min_samples = excluded.min_samples,
		     document_count = excluded.document_count`,
		run.ID, run.Eps, run.MinSamples, run.DocumentCount, run.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

func (w *writer) UpsertCluster(ctx context.Context, runID, clusterID string, memberIDs []string) error {
	if memberIDs == nil {
		memberIDs = []string{}
	}
	members, err := json.Marshal(memberIDs)
	if err != nil {
		return fmt.Errorf("encoding members: %w", err)
	}
	_, err = w.q.ExecContext(ctx,
		`INSERT INTO clusters (run_id, cluster_id, noise, member_ids) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, cluster_id) DO UPDATE SET
		     noise = excluded.noise,
		     member_ids = excluded.member_ids`,
		runID, clusterID, clusterID == domain.NoiseClusterID, string(members),
	)
	return err
}

func (w *writer) UpsertAttribution(ctx context.Context, runID string, entry domain.AttributionEntry) error {
	sources := make([]sourceJSON, len(entry.Sources))
	for i, s := range entry.Sources {
		sources[i] = sourceJSON{DocumentID: s.DocumentID, Similarity: s.Similarity}
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	_, err = w.q.ExecContext(ctx,
		`INSERT INTO attributions (document_id, chunk_index, run_id, status, sources, error) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id, chunk_index) DO UPDATE SET
		     run_id = excluded.run_id,
		     status = excluded.status,
		     sources = excluded.sources,
		     error = excluded.error`,
		entry.DocumentID, entry.ChunkIndex, runID, string(entry.Status), string(data), entry.Error,
	)
	return err
}

func (w *writer) UpsertAttributionRun(ctx context.Context, run *domain.AttributionRun) error {
	history := make([]transitionJSON, len(run.History))
	for i, h := range run.History {
		history[i] = transitionJSON{State: h.State, At: h.At}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	_, err = w.q.ExecContext(ctx,
		`INSERT INTO attribution_runs (id, document_id, strategy, threshold, state, error, history) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     state = excluded.state,
		     error = excluded.error,
		     history = excluded.history`,
		run.ID, run.DocumentID, string(run.Strategy), run.Threshold, string(run.State), run.Error, string(data),
	)
	return err
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
