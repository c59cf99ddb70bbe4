// Package cluster groups document vectors into stories with density-based
// clustering over cosine distance.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/vectorize"
)

// LabelFormat names story clusters in order of their smallest member id.
const LabelFormat = "story-%03d"

// Engine runs DBSCAN. The zero value is usable.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an Engine that logs run summaries at debug level.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// ValidateParams rejects eps <= 0 and minSamples < 1.
func ValidateParams(eps float64, minSamples int) error {
	if math.IsNaN(eps) || eps <= 0 {
		return domain.NewConfigurationError("cluster eps must be greater than 0, got %v", eps)
	}
	if minSamples < 1 {
		return domain.NewConfigurationError("cluster min_samples must be at least 1, got %d", minSamples)
	}
	return nil
}

// Cluster assigns every id to a story label or domain.NoiseClusterID. Row i of
// vectors belongs to ids[i]; a nil matrix means every document is a zero
// vector.
//
// A point is core when at least minSamples points, itself included, lie
// within cosine distance eps. Core points that are neighbours share a
// cluster. A non-core neighbour of a core point joins the cluster of its
// nearest core point, ties going to the smaller id. Zero vectors have no
// neighbours and are always noise. The partition does not depend on the
// order of ids.
func (e *Engine) Cluster(ids []string, vectors *mat.Dense, eps float64, minSamples int) (map[string]string, error) {
	if err := ValidateParams(eps, minSamples); err != nil {
		return nil, err
	}
	if vectors != nil {
		if rows, _ := vectors.Dims(); rows != len(ids) {
			return nil, fmt.Errorf("cluster: %d ids but %d vectors", len(ids), rows)
		}
	}

	order := make([]int, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidDocument.Message,
				fmt.Errorf("duplicate document id %s", id))
		}
		seen[id] = struct{}{}
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = domain.NoiseClusterID
	}
	if vectors == nil || len(ids) == 0 {
		e.log().Debug("clustered documents", zap.Int("documents", len(ids)), zap.Int("stories", 0))
		return out, nil
	}

	dist := vectorize.CosineDistances(vectors)
	n := len(order)

	// Work in sorted-id space from here on: p indexes order.
	neighbors := make([][]int, n)
	core := make([]bool, n)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if dist.At(order[p], order[q]) <= eps {
				neighbors[p] = append(neighbors[p], q)
			}
		}
		core[p] = len(neighbors[p]) >= minSamples
	}

	component := make([]int, n)
	for p := range component {
		component[p] = -1
	}
	components := 0
	for p := 0; p < n; p++ {
		if !core[p] || component[p] >= 0 {
			continue
		}
		queue := []int{p}
		component[p] = components
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, q := range neighbors[cur] {
				if core[q] && component[q] < 0 {
					component[q] = components
					queue = append(queue, q)
				}
			}
		}
		components++
	}

	for p := 0; p < n; p++ {
		if core[p] {
			continue
		}
		nearest, best := -1, math.Inf(1)
		for _, q := range neighbors[p] {
			if !core[q] {
				continue
			}
			if d := dist.At(order[p], order[q]); d < best {
				nearest, best = q, d
			}
		}
		if nearest >= 0 {
			component[p] = component[nearest]
		}
	}

	// Components were discovered in sorted order of their first core point,
	// but a border point can have a smaller id. Relabel by smallest member.
	first := make([]int, components)
	for c := range first {
		first[c] = n
	}
	for p := 0; p < n; p++ {
		if c := component[p]; c >= 0 && p < first[c] {
			first[c] = p
		}
	}
	rank := make([]int, components)
	for c := range rank {
		rank[c] = c
	}
	sort.Slice(rank, func(a, b int) bool { return first[rank[a]] < first[rank[b]] })
	label := make([]string, components)
	for i, c := range rank {
		label[c] = fmt.Sprintf(LabelFormat, i+1)
	}

	noise := 0
	for p := 0; p < n; p++ {
		if c := component[p]; c >= 0 {
			out[ids[order[p]]] = label[c]
		} else {
			noise++
		}
	}

	e.log().Debug("clustered documents",
		zap.Int("documents", n),
		zap.Int("stories", components),
		zap.Int("noise", noise),
		zap.Float64("eps", eps),
		zap.Int("min_samples", minSamples),
	)
	return out, nil
}

func (e *Engine) log() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}
