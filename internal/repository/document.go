package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Create inserts doc and reports whether it was new. Documents are immutable,
// so an existing row is left untouched.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, text, published_at, source_label)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Text, doc.Timestamp, doc.SourceLabel,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() == 1, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, text, published_at, source_label FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Text, &d.Timestamp, &d.SourceLabel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	d.Timestamp = d.Timestamp.UTC()
	return &d, nil
}

// GetByIDs returns the documents that exist, ordered by id.
func (r *DocumentRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Document, error) {
	if len(ids) == 0 {
		return []*domain.Document{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, text, published_at, source_label FROM documents WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListSince returns documents published at or after since, ordered by id.
func (r *DocumentRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, text, published_at, source_label FROM documents WHERE published_at >= $1 ORDER BY id`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	docs := []*domain.Document{}
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Text, &d.Timestamp, &d.SourceLabel); err != nil {
			return nil, err
		}
		d.Timestamp = d.Timestamp.UTC()
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
