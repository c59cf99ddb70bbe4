package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/logging"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	DocumentReader
	// Create stores doc unless a document with the same id exists. It reports
	// whether a new row was written.
	Create(ctx context.Context, doc *domain.Document) (bool, error)
}

// IngestRejection describes a record that could not be ingested.
type IngestRejection struct {
	Position int    `json:"position"`
	ID       string `json:"id,omitempty"`
	Reason   string `json:"reason"`
}

// IngestResult summarizes one ingest batch.
type IngestResult struct {
	Created  []string          `json:"created"`
	Existing []string          `json:"existing"`
	Rejected []IngestRejection `json:"rejected"`
}

// DocumentService handles ingest and lookup of scraped documents
type DocumentService struct {
	repo   DocumentRepositoryInterface
	logger *zap.Logger
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(repo DocumentRepositoryInterface, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		repo:   repo,
		logger: logging.Component(logger, "document-service"),
	}
}

// Ingest stores every valid record. Invalid records are rejected individually
// and do not stop the batch; a storage failure does.
func (s *DocumentService) Ingest(ctx context.Context, records []domain.DocumentRecord) (*IngestResult, error) {
	result := &IngestResult{Created: []string{}, Existing: []string{}, Rejected: []IngestRejection{}}
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		doc, err := domain.ParseDocumentRecord(rec)
		if err != nil {
			result.Rejected = append(result.Rejected, IngestRejection{Position: i, ID: rec.ID, Reason: err.Error()})
			continue
		}
		if _, dup := seen[doc.ID]; dup {
			result.Rejected = append(result.Rejected, IngestRejection{Position: i, ID: doc.ID, Reason: "duplicate id in batch"})
			continue
		}
		seen[doc.ID] = struct{}{}

		created, err := s.repo.Create(ctx, doc)
		if err != nil {
			return result, fmt.Errorf("failed to store document %s: %w", doc.ID, err)
		}
		if created {
			result.Created = append(result.Created, doc.ID)
		} else {
			result.Existing = append(result.Existing, doc.ID)
		}
	}
	s.logger.Info("documents ingested",
		zap.Int("created", len(result.Created)),
		zap.Int("existing", len(result.Existing)),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// Get returns a document by id.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.repo.GetByID(ctx, id)
}

// ListSince returns documents with a timestamp at or after since.
func (s *DocumentService) ListSince(ctx context.Context, since time.Time) ([]*domain.Document, error) {
	return s.repo.ListSince(ctx, since)
}

// DecodeDocumentRecords accepts either a single record object or an array of
// records.
func DecodeDocumentRecords(data []byte) ([]domain.DocumentRecord, error) {
	var many []domain.DocumentRecord
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one domain.DocumentRecord
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "malformed document records", err)
	}
	return []domain.DocumentRecord{one}, nil
}
