package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

type AttributionRepository struct {
	db dbtx
}

func NewAttributionRepository(pool *pgxpool.Pool) *AttributionRepository {
	return &AttributionRepository{db: pool}
}

func NewAttributionRepositoryWithTx(tx pgx.Tx) *AttributionRepository {
	return &AttributionRepository{db: tx}
}

type sourceRow struct {
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

type transitionRow struct {
	State domain.RunState `json:"state"`
	At    time.Time       `json:"at"`
}

// UpsertAttribution stores the latest attribution of one generated chunk.
func (r *AttributionRepository) UpsertAttribution(ctx context.Context, runID string, entry domain.AttributionEntry) error {
	sources, err := encodeSources(entry.Sources)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO attributions (document_id, chunk_index, run_id, status, sources, error, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (document_id, chunk_index) DO UPDATE SET
		     run_id = EXCLUDED.run_id,
		     status = EXCLUDED.status,
		     sources = EXCLUDED.sources,
		     error = EXCLUDED.error,
		     updated_at = now()`,
		entry.DocumentID, entry.ChunkIndex, runID, entry.Status, sources, nullableString(entry.Error),
	)
	return err
}

func (r *AttributionRepository) UpsertAttributionRun(ctx context.Context, run *domain.AttributionRun) error {
	history := make([]transitionRow, len(run.History))
	for i, h := range run.History {
		history[i] = transitionRow{State: h.State, At: h.At}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode run history: %w", err)
	}
	createdAt := time.Now().UTC()
	if len(run.History) > 0 {
		createdAt = run.History[0].At
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO attribution_runs (id, document_id, strategy, threshold, state, error, history, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (id) DO UPDATE SET
		     state = EXCLUDED.state,
		     error = EXCLUDED.error,
		     history = EXCLUDED.history,
		     updated_at = now()`,
		run.ID, run.DocumentID, run.Strategy, run.Threshold, run.State, nullableString(run.Error), historyJSON, createdAt,
	)
	return err
}

// ListByDocument returns the stored entries of a generated document in chunk
// order.
func (r *AttributionRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.AttributionEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id, chunk_index, status, sources, error
		 FROM attributions WHERE document_id = $1 ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.AttributionEntry{}
	for rows.Next() {
		var e domain.AttributionEntry
		var sources []byte
		var errMsg pgtype.Text
		if err := rows.Scan(&e.DocumentID, &e.ChunkIndex, &e.Status, &sources, &errMsg); err != nil {
			return nil, err
		}
		if e.Sources, err = decodeSources(sources); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			e.Error = errMsg.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func encodeSources(sources []domain.SourceMatch) ([]byte, error) {
	out := make([]sourceRow, len(sources))
	for i, s := range sources {
		out[i] = sourceRow{DocumentID: s.DocumentID, Similarity: s.Similarity}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sources: %w", err)
	}
	return data, nil
}

func decodeSources(data []byte) ([]domain.SourceMatch, error) {
	var rows []sourceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	out := make([]domain.SourceMatch, len(rows))
	for i, s := range rows {
		out[i] = domain.SourceMatch{DocumentID: s.DocumentID, Similarity: s.Similarity}
	}
	return out, nil
}
