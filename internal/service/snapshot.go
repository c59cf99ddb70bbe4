package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// SnapshotArchiver stores run snapshots as JSON objects.
type SnapshotArchiver interface {
	PutJSON(ctx context.Context, key string, v any) error
}

// ClusterRunSnapshotKey is the archive key of a cluster run.
func ClusterRunSnapshotKey(runID string) string {
	return "cluster-runs/" + runID + ".json"
}

// AttributionRunSnapshotKey is the archive key of an attribution run.
func AttributionRunSnapshotKey(runID string) string {
	return "attribution-runs/" + runID + ".json"
}

// ClusterSnapshot is the JSON shape of one cluster.
type ClusterSnapshot struct {
	ID        string   `json:"id"`
	Noise     bool     `json:"noise"`
	MemberIDs []string `json:"member_ids"`
}

// ClusterRunSnapshot is the JSON shape of a cluster run.
type ClusterRunSnapshot struct {
	ID            string            `json:"id"`
	Eps           float64           `json:"eps"`
	MinSamples    int               `json:"min_samples"`
	DocumentCount int               `json:"document_count"`
	CreatedAt     time.Time         `json:"created_at"`
	Clusters      []ClusterSnapshot `json:"clusters"`
}

// NewClusterRunSnapshot converts a run into its JSON shape.
func NewClusterRunSnapshot(run *domain.ClusterRun) ClusterRunSnapshot {
	clusters := make([]ClusterSnapshot, len(run.Clusters))
	for i, c := range run.Clusters {
		members := c.MemberIDs
		if members == nil {
			members = []string{}
		}
		clusters[i] = ClusterSnapshot{ID: c.ID, Noise: c.Noise, MemberIDs: members}
	}
	return ClusterRunSnapshot{
		ID:            run.ID,
		Eps:           run.Eps,
		MinSamples:    run.MinSamples,
		DocumentCount: run.DocumentCount,
		CreatedAt:     run.CreatedAt,
		Clusters:      clusters,
	}
}

// SourceMatchSnapshot is the JSON shape of a supporting source.
type SourceMatchSnapshot struct {
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

// AttributionEntrySnapshot is the JSON shape of an attribution entry.
type AttributionEntrySnapshot struct {
	DocumentID string                `json:"document_id"`
	ChunkIndex int                   `json:"chunk_index"`
	Status     domain.EntryStatus    `json:"status"`
	Sources    []SourceMatchSnapshot `json:"sources"`
	Error      string                `json:"error,omitempty"`
}

// NewAttributionEntrySnapshot converts an entry into its JSON shape.
func NewAttributionEntrySnapshot(e domain.AttributionEntry) AttributionEntrySnapshot {
	sources := make([]SourceMatchSnapshot, len(e.Sources))
	for i, s := range e.Sources {
		sources[i] = SourceMatchSnapshot{DocumentID: s.DocumentID, Similarity: s.Similarity}
	}
	return AttributionEntrySnapshot{
		DocumentID: e.DocumentID,
		ChunkIndex: e.ChunkIndex,
		Status:     e.Status,
		Sources:    sources,
		Error:      e.Error,
	}
}

// AttributionRunSnapshot is the JSON shape of an attribution run.
type AttributionRunSnapshot struct {
	ID         string                     `json:"id"`
	DocumentID string                     `json:"document_id"`
	Strategy   domain.AttributionStrategy `json:"strategy"`
	Threshold  float64                    `json:"threshold"`
	State      domain.RunState            `json:"state"`
	Error      string                     `json:"error,omitempty"`
	History    []RunTransitionSnapshot    `json:"history"`
	Entries    []AttributionEntrySnapshot `json:"entries"`
}

// RunTransitionSnapshot is the JSON shape of a state transition.
type RunTransitionSnapshot struct {
	State domain.RunState `json:"state"`
	At    time.Time       `json:"at"`
}

// NewAttributionRunSnapshot converts a run into its JSON shape.
func NewAttributionRunSnapshot(run *domain.AttributionRun) AttributionRunSnapshot {
	history := make([]RunTransitionSnapshot, len(run.History))
	for i, h := range run.History {
		history[i] = RunTransitionSnapshot{State: h.State, At: h.At}
	}
	entries := make([]AttributionEntrySnapshot, len(run.Entries))
	for i, e := range run.Entries {
		entries[i] = NewAttributionEntrySnapshot(e)
	}
	return AttributionRunSnapshot{
		ID:         run.ID,
		DocumentID: run.DocumentID,
		Strategy:   run.Strategy,
		Threshold:  run.Threshold,
		State:      run.State,
		Error:      run.Error,
		History:    history,
		Entries:    entries,
	}
}
