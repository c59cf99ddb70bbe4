// Package sqlite is a single-file store for the offline CLI. It implements
// the same document, cluster run and attribution contracts as the Postgres
// repositories.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/pagination"
	"github.com/cloo-solutions/newsweave/internal/service"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// WithTx runs fn inside a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&txStore{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type txStore struct {
	q queryer
}

func (t *txStore) ClusterRuns() service.ClusterRunStore {
	return &writer{q: t.q}
}

func (t *txStore) Attributions() service.AttributionStore {
	return &writer{q: t.q}
}

// Create inserts doc unless the id is already stored.
func (s *Store) Create(ctx context.Context, doc *domain.Document) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, text, published_at, source_label) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Text, doc.Timestamp.UTC().Format(timeLayout), doc.SourceLabel,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, published_at, source_label FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	return d, err
}

func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]*domain.Document, error) {
	out := []*domain.Document{}
	for _, id := range uniqueSorted(ids) {
		d, err := s.GetByID(ctx, id)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) ListSince(ctx context.Context, since time.Time) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, published_at, source_label FROM documents WHERE published_at >= ? ORDER BY id`,
		since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.ClusterRun, error) {
	var run domain.ClusterRun
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, eps, min_samples, document_count, created_at FROM cluster_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Eps, &run.MinSamples, &run.DocumentCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrClusterRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cluster_id, noise, member_ids FROM clusters WHERE run_id = ? ORDER BY noise, cluster_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c := domain.Cluster{RunID: run.ID}
		var members string
		if err := rows.Scan(&c.ID, &c.Noise, &members); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(members), &c.MemberIDs); err != nil {
			return nil, fmt.Errorf("decoding members of %s: %w", c.ID, err)
		}
		run.Clusters = append(run.Clusters, c)
	}
	return &run, rows.Err()
}

// ListRuns returns run headers newest first.
func (s *Store) ListRuns(ctx context.Context, after *pagination.Cursor, limit int) ([]*domain.ClusterRun, error) {
	query := `SELECT id, eps, min_samples, document_count, created_at FROM cluster_runs`
	args := []any{}
	if after != nil {
		query += ` WHERE (created_at, id) < (?, ?)`
		args = append(args, after.Timestamp.UTC().Format(timeLayout), after.LastID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.ClusterRun{}
	for rows.Next() {
		var run domain.ClusterRun
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Eps, &run.MinSamples, &run.DocumentCount, &createdAt); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (s *Store) ListByDocument(ctx context.Context, documentID string) ([]domain.AttributionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, chunk_index, status, sources, error FROM attributions
		 WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.AttributionEntry{}
	for rows.Next() {
		var e domain.AttributionEntry
		var sources string
		if err := rows.Scan(&e.DocumentID, &e.ChunkIndex, &e.Status, &sources, &e.Error); err != nil {
			return nil, err
		}
		var decoded []sourceJSON
		if err := json.Unmarshal([]byte(sources), &decoded); err != nil {
			return nil, fmt.Errorf("decoding sources: %w", err)
		}
		e.Sources = make([]domain.SourceMatch, len(decoded))
		for i, src := range decoded {
			e.Sources[i] = domain.SourceMatch{DocumentID: src.DocumentID, Similarity: src.Similarity}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var ts string
	if err := row.Scan(&d.ID, &d.Text, &ts, &d.SourceLabel); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(timeLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp of %s: %w", d.ID, err)
	}
	d.Timestamp = parsed
	return &d, nil
}
