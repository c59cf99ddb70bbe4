package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/newsweave/internal/api"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/pagination"
	"github.com/cloo-solutions/newsweave/internal/service"
)

type ClusterService interface {
	RunWindow(ctx context.Context, since time.Time, params service.ClusterParams) (*domain.ClusterRun, error)
	RunDocuments(ctx context.Context, ids []string, params service.ClusterParams) (*domain.ClusterRun, error)
	GetRun(ctx context.Context, id string) (*domain.ClusterRun, error)
	ListRuns(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.ClusterRun], error)
}

type ClusterRunHandler struct {
	svc      ClusterService
	defaults service.ClusterParams
	window   time.Duration
	now      func() time.Time
}

// NewClusterRunHandler uses defaults for omitted parameters and window as
// the look-back when neither since nor document ids are given.
func NewClusterRunHandler(svc ClusterService, defaults service.ClusterParams, window time.Duration) *ClusterRunHandler {
	return &ClusterRunHandler{
		svc:      svc,
		defaults: defaults,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateClusterRunRequest starts a run. Since accepts an RFC 3339 time or a
// duration such as "48h" measured back from now.
type CreateClusterRunRequest struct {
	Since       string   `json:"since,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	Eps         *float64 `json:"eps,omitempty"`
	MinSamples  *int     `json:"min_samples,omitempty"`
}

type ListClusterRunsResponse struct {
	Items   []service.ClusterRunSnapshot `json:"items"`
	Cursor  string                       `json:"cursor,omitempty"`
	HasMore bool                         `json:"has_more"`
}

func (h *ClusterRunHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateClusterRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Since != "" && len(req.DocumentIDs) > 0 {
		api.Error(w, http.StatusBadRequest, "since and document_ids are mutually exclusive")
		return
	}

	params := h.defaults
	if req.Eps != nil {
		params.Eps = *req.Eps
	}
	if req.MinSamples != nil {
		params.MinSamples = *req.MinSamples
	}

	var (
		run *domain.ClusterRun
		err error
	)
	if len(req.DocumentIDs) > 0 {
		run, err = h.svc.RunDocuments(r.Context(), req.DocumentIDs, params)
	} else {
		since, perr := h.parseSince(req.Since)
		if perr != nil {
			api.Error(w, http.StatusBadRequest, "since must be an RFC 3339 time or a duration")
			return
		}
		run, err = h.svc.RunWindow(r.Context(), since, params)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, service.NewClusterRunSnapshot(run))
}

func (h *ClusterRunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, service.NewClusterRunSnapshot(run))
}

func (h *ClusterRunHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	page, err := h.svc.ListRuns(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ListClusterRunsResponse{
		Items:   make([]service.ClusterRunSnapshot, len(page.Items)),
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	}
	for i, run := range page.Items {
		resp.Items[i] = service.NewClusterRunSnapshot(run)
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *ClusterRunHandler) parseSince(value string) (time.Time, error) {
	if value == "" {
		return h.now().Add(-h.window), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return time.Time{}, errors.New("invalid since")
	}
	return h.now().Add(-d), nil
}
