package service

import (
	"context"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// ClusterRunStore persists cluster run generations.
type ClusterRunStore interface {
	CreateRun(ctx context.Context, run *domain.ClusterRun) error
	// UpsertCluster is idempotent per (runID, clusterID).
	UpsertCluster(ctx context.Context, runID, clusterID string, memberIDs []string) error
}

// AttributionStore persists attribution entries and run records.
type AttributionStore interface {
	// UpsertAttribution is idempotent per generated (document, chunk index).
	UpsertAttribution(ctx context.Context, runID string, entry domain.AttributionEntry) error
	UpsertAttributionRun(ctx context.Context, run *domain.AttributionRun) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	ClusterRuns() ClusterRunStore
	Attributions() AttributionStore
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
