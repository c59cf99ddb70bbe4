package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/newsweave/internal/api"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/service"
)

type DocumentService interface {
	Ingest(ctx context.Context, records []domain.DocumentRecord) (*service.IngestResult, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	SourceLabel string `json:"source_label,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Text:        d.Text,
		Timestamp:   d.Timestamp.UTC().Format(time.RFC3339),
		SourceLabel: d.SourceLabel,
	}
}

// Create ingests one record or an array of records. Invalid records are
// reported back without failing the batch.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	records, err := service.DecodeDocumentRecords(body)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(records) == 0 {
		api.Error(w, http.StatusBadRequest, "at least one document is required")
		return
	}

	result, err := h.svc.Ingest(r.Context(), records)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusOK
	}
	api.Success(w, status, result)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}
