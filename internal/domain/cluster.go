package domain

import (
	"fmt"
	"sort"
	"time"
)

// NoiseClusterID marks documents that were not grouped into any story.
const NoiseClusterID = "noise"

// Cluster is a set of documents judged to describe the same event. The noise
// set is represented as a Cluster with Noise set and ID NoiseClusterID.
type Cluster struct {
	ID        string
	RunID     string
	Noise     bool
	MemberIDs []string
}

// ClusterRun is one clustering generation. It is not mutated after creation;
// re-clustering creates a new run.
type ClusterRun struct {
	ID            string
	Eps           float64
	MinSamples    int
	DocumentCount int
	Clusters      []Cluster
	CreatedAt     time.Time
}

// NewClusterRun groups an assignment map (document id to cluster id or
// NoiseClusterID) into clusters. Clusters are ordered by id with noise last and
// members are sorted.
func NewClusterRun(id string, eps float64, minSamples int, assignments map[string]string, createdAt time.Time) *ClusterRun {
	members := make(map[string][]string)
	for docID, clusterID := range assignments {
		members[clusterID] = append(members[clusterID], docID)
	}

	ids := make([]string, 0, len(members))
	for clusterID := range members {
		if clusterID != NoiseClusterID {
			ids = append(ids, clusterID)
		}
	}
	sort.Strings(ids)

	clusters := make([]Cluster, 0, len(members))
	for _, clusterID := range ids {
		m := members[clusterID]
		sort.Strings(m)
		clusters = append(clusters, Cluster{ID: clusterID, RunID: id, MemberIDs: m})
	}
	noise := members[NoiseClusterID]
	sort.Strings(noise)
	clusters = append(clusters, Cluster{ID: NoiseClusterID, RunID: id, Noise: true, MemberIDs: noise})

	return &ClusterRun{
		ID:            id,
		Eps:           eps,
		MinSamples:    minSamples,
		DocumentCount: len(assignments),
		Clusters:      clusters,
		CreatedAt:     createdAt,
	}
}

// Stories returns the non-noise clusters.
func (r *ClusterRun) Stories() []Cluster {
	out := make([]Cluster, 0, len(r.Clusters))
	for _, c := range r.Clusters {
		if !c.Noise {
			out = append(out, c)
		}
	}
	return out
}

// NoiseIDs returns the ids of documents labelled as noise.
func (r *ClusterRun) NoiseIDs() []string {
	for _, c := range r.Clusters {
		if c.Noise {
			return c.MemberIDs
		}
	}
	return nil
}

// Assignments flattens the run back into document id -> cluster id.
func (r *ClusterRun) Assignments() map[string]string {
	out := make(map[string]string, r.DocumentCount)
	for _, c := range r.Clusters {
		for _, id := range c.MemberIDs {
			out[id] = c.ID
		}
	}
	return out
}

// ValidateClusterRun checks that every expected document id appears in exactly
// one cluster or the noise set, and that cluster ids are unique.
func ValidateClusterRun(r *ClusterRun, documentIDs []string) error {
	if r == nil {
		return fmt.Errorf("cluster run cannot be nil")
	}
	seenCluster := make(map[string]struct{}, len(r.Clusters))
	seenDoc := make(map[string]string, len(documentIDs))
	for _, c := range r.Clusters {
		if _, dup := seenCluster[c.ID]; dup {
			return NewDomainErrorWithCause(ErrCodeInternalError, ErrIncompleteClusterCoverage.Message,
				fmt.Errorf("duplicate cluster id %s", c.ID))
		}
		seenCluster[c.ID] = struct{}{}
		for _, id := range c.MemberIDs {
			if prev, dup := seenDoc[id]; dup {
				return NewDomainErrorWithCause(ErrCodeInternalError, ErrIncompleteClusterCoverage.Message,
					fmt.Errorf("document %s in both %s and %s", id, prev, c.ID))
			}
			seenDoc[id] = c.ID
		}
	}
	for _, id := range documentIDs {
		if _, ok := seenDoc[id]; !ok {
			return NewDomainErrorWithCause(ErrCodeInternalError, ErrIncompleteClusterCoverage.Message,
				fmt.Errorf("document %s has no assignment", id))
		}
	}
	if len(seenDoc) != len(documentIDs) {
		return NewDomainErrorWithCause(ErrCodeInternalError, ErrIncompleteClusterCoverage.Message,
			fmt.Errorf("run covers %d documents, expected %d", len(seenDoc), len(documentIDs)))
	}
	return nil
}
