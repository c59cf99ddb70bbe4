package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/api/handlers"
	"github.com/cloo-solutions/newsweave/internal/api/middleware"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/repository/sqlite"
	"github.com/cloo-solutions/newsweave/internal/service"
)

const testToken = "nw_test_token"

type MockAttributionJobService struct {
	mock.Mock
}

func (m *MockAttributionJobService) Submit(ctx context.Context, input service.SubmitAttributionInput) (*domain.AttributionJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttributionJob), args.Error(1)
}

func (m *MockAttributionJobService) Get(ctx context.Context, id string) (*domain.AttributionJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttributionJob), args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	router http.Handler
	jobs   *MockAttributionJobService
}

func setupRouter(t *testing.T, health Pinger) *testEnv {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zap.NewNop()
	documents := service.NewDocumentService(store, logger)
	clusters := service.NewClusterService(service.ClusterServiceDeps{
		Documents: store,
		Runs:      store,
		Tx:        store,
		Logger:    logger,
	})
	attribution, err := service.NewAttributionService(service.AttributionServiceDeps{
		Attributors: map[domain.AttributionStrategy]service.Attributor{
			domain.StrategySimilarity: service.NewSimilarityAttributor(nil, nil, logger),
		},
		DefaultStrategy:  domain.StrategySimilarity,
		DefaultThreshold: 0.75,
		Documents:        store,
		Entries:          store,
		Tx:               store,
		Logger:           logger,
	})
	require.NoError(t, err)
	jobs := new(MockAttributionJobService)

	router := NewRouter(RouterConfig{
		TokenValidator:     middleware.StaticToken{Token: testToken},
		Logger:             logger,
		Health:             health,
		DocumentHandler:    handlers.NewDocumentHandler(documents),
		ClusterRunHandler:  handlers.NewClusterRunHandler(clusters, service.ClusterParams{Eps: 0.6, MinSamples: 2}, 48*time.Hour),
		AttributionHandler: handlers.NewAttributionHandler(jobs, attribution),
	})
	return &testEnv{router: router, jobs: jobs}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func TestRouter_HealthEndpoint(t *testing.T) {
	env := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_HealthEndpoint_DatabaseDown(t *testing.T) {
	env := setupRouter(t, pingerFunc(func(context.Context) error { return errors.New("connection refused") }))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	env := setupRouter(t, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/documents"},
		{http.MethodGet, "/documents/a"},
		{http.MethodPost, "/cluster-runs"},
		{http.MethodGet, "/cluster-runs"},
		{http.MethodGet, "/cluster-runs/run-1"},
		{http.MethodPost, "/attributions"},
		{http.MethodGet, "/attributions/gen"},
		{http.MethodGet, "/attribution-jobs/job-1"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			env.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_WrongToken(t *testing.T) {
	env := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/cluster-runs", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_IngestAndCluster(t *testing.T) {
	env := setupRouter(t, nil)

	docs := `[
		{"id":"a","text":"Central bank raises interest rates to fight inflation","timestamp":"2024-03-01T08:00:00Z"},
		{"id":"b","text":"Inflation fight: central bank raises interest rates again","timestamp":"2024-03-01T09:00:00Z"},
		{"id":"c","text":"Local team wins football championship final","timestamp":"2024-03-01T10:00:00Z"},
		{"id":"bad","text":"","timestamp":"not a date"}
	]`
	w := env.do(t, http.MethodPost, "/documents", docs)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ingest service.IngestResult
	data(t, w, &ingest)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ingest.Created)
	require.Len(t, ingest.Rejected, 1)
	assert.Equal(t, 3, ingest.Rejected[0].Position)

	w = env.do(t, http.MethodGet, "/documents/a", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/documents/zzz", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/cluster-runs", `{"document_ids":["a","b","c"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var run service.ClusterRunSnapshot
	data(t, w, &run)
	assert.Equal(t, 3, run.DocumentCount)

	covered := 0
	for _, c := range run.Clusters {
		covered += len(c.MemberIDs)
	}
	assert.Equal(t, 3, covered)

	w = env.do(t, http.MethodGet, "/cluster-runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var fetched service.ClusterRunSnapshot
	data(t, w, &fetched)
	assert.Equal(t, run.Clusters, fetched.Clusters)

	w = env.do(t, http.MethodGet, "/cluster-runs?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page handlers.ListClusterRunsResponse
	data(t, w, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, run.ID, page.Items[0].ID)
	assert.False(t, page.HasMore)
}

func TestRouter_ClusterRun_MissingDocuments(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do(t, http.MethodPost, "/cluster-runs", `{"document_ids":["ghost"]}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ClusterRun_InvalidParams(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do(t, http.MethodPost, "/cluster-runs", `{"min_samples":0}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeConfiguration)
}

func TestRouter_Attributions(t *testing.T) {
	env := setupRouter(t, nil)

	job := domain.NewAttributionJob("job-1", "gen", []string{"a"}, domain.StrategySimilarity, 0.75, time.Now())
	env.jobs.On("Submit", mock.Anything, mock.Anything).Return(job, nil)
	env.jobs.On("Get", mock.Anything, "job-1").Return(job, nil)

	w := env.do(t, http.MethodPost, "/attributions", `{"document_id":"gen","source_document_ids":["a"]}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(t, http.MethodGet, "/attribution-jobs/job-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/attributions/gen", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries handlers.AttributionEntriesResponse
	data(t, w, &entries)
	assert.Empty(t, entries.Entries)
}
