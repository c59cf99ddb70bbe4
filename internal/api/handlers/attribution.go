package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/newsweave/internal/api"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/service"
)

type AttributionJobService interface {
	Submit(ctx context.Context, input service.SubmitAttributionInput) (*domain.AttributionJob, error)
	Get(ctx context.Context, id string) (*domain.AttributionJob, error)
}

type AttributionEntryLister interface {
	ListEntries(ctx context.Context, documentID string) ([]domain.AttributionEntry, error)
}

type AttributionHandler struct {
	jobs    AttributionJobService
	entries AttributionEntryLister
}

func NewAttributionHandler(jobs AttributionJobService, entries AttributionEntryLister) *AttributionHandler {
	return &AttributionHandler{jobs: jobs, entries: entries}
}

type CreateAttributionRequest struct {
	DocumentID        string   `json:"document_id"`
	SourceDocumentIDs []string `json:"source_document_ids"`
	Strategy          string   `json:"strategy,omitempty"`
	Threshold         *float64 `json:"threshold,omitempty"`
}

type AttributionJobResponse struct {
	ID                string   `json:"id"`
	DocumentID        string   `json:"document_id"`
	SourceDocumentIDs []string `json:"source_document_ids"`
	Strategy          string   `json:"strategy"`
	Threshold         float64  `json:"threshold"`
	Status            string   `json:"status"`
	Retries           int32    `json:"retries"`
	Error             string   `json:"error,omitempty"`
	RunID             string   `json:"run_id,omitempty"`
	CreatedAt         string   `json:"created_at"`
	ProcessedAt       string   `json:"processed_at,omitempty"`
}

func jobToResponse(j *domain.AttributionJob) *AttributionJobResponse {
	resp := &AttributionJobResponse{
		ID:                j.ID,
		DocumentID:        j.DocumentID,
		SourceDocumentIDs: j.SourceDocumentIDs,
		Strategy:          string(j.Strategy),
		Threshold:         j.Threshold,
		Status:            string(j.Status),
		Retries:           j.Retries,
		Error:             j.Error,
		RunID:             j.RunID,
		CreatedAt:         j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type AttributionEntriesResponse struct {
	DocumentID string                             `json:"document_id"`
	Entries    []service.AttributionEntrySnapshot `json:"entries"`
}

// Create queues an attribution job and answers 202 with the job.
func (h *AttributionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAttributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "document_id is required")
		return
	}
	if len(req.SourceDocumentIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "source_document_ids is required")
		return
	}

	job, err := h.jobs.Submit(r.Context(), service.SubmitAttributionInput{
		DocumentID:        req.DocumentID,
		SourceDocumentIDs: req.SourceDocumentIDs,
		Strategy:          domain.AttributionStrategy(req.Strategy),
		Threshold:         req.Threshold,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func (h *AttributionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}

func (h *AttributionHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	if documentID == "" {
		api.Error(w, http.StatusBadRequest, "document_id is required")
		return
	}

	entries, err := h.entries.ListEntries(r.Context(), documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AttributionEntriesResponse{
		DocumentID: documentID,
		Entries:    make([]service.AttributionEntrySnapshot, len(entries)),
	}
	for i, e := range entries {
		resp.Entries[i] = service.NewAttributionEntrySnapshot(e)
	}
	api.Success(w, http.StatusOK, resp)
}
