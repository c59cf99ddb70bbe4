//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/api/handlers"
	"github.com/cloo-solutions/newsweave/internal/api/middleware"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/jobs"
	"github.com/cloo-solutions/newsweave/internal/repository"
	"github.com/cloo-solutions/newsweave/internal/server"
	"github.com/cloo-solutions/newsweave/internal/service"
	"github.com/cloo-solutions/newsweave/internal/storage"
	"github.com/cloo-solutions/newsweave/internal/testutil"
)

const (
	apiToken       = "nw_e2e_token"
	embeddingDims  = 64
	workerInterval = 200 * time.Millisecond
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.S3Client
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, then the API server and the
// attribution worker against them.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "newsweave-runs",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = startServer(t, pool, s3Client, port)
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the newsweave CLI
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "newsweave-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "newsweave"), "./cmd/newsweave")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build newsweave: %v\n%s", err, out)
	}
}

// RunNewsweave runs the newsweave CLI against the test server
func (e *E2ETestEnv) RunNewsweave(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "newsweave"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("NEWSWEAVE_API_TOKEN=%s", apiToken),
		fmt.Sprintf("NEWSWEAVE_API_URL=%s", e.ServerURL),
		"NEWSWEAVE_OPENAI_API_KEY=",
		fmt.Sprintf("XDG_CONFIG_HOME=%s", workDir),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stdout.String() + stderr.String(), err
	}
	return stdout.String(), nil
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs an authenticated GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs an authenticated POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiToken)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response (%d): %w", resp.StatusCode, err)
	}
	apiResp.StatusCode = resp.StatusCode
	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("API error %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// WaitForJob polls an attribution job until it leaves the queue.
func (e *E2ETestEnv) WaitForJob(id string, timeout time.Duration) handlers.AttributionJobResponse {
	deadline := time.Now().Add(timeout)
	var job handlers.AttributionJobResponse
	for time.Now().Before(deadline) {
		resp, err := e.Get("/attribution-jobs/" + id)
		if err != nil {
			e.T.Fatalf("failed to get job: %v", err)
		}
		if err := json.Unmarshal(resp.Data, &job); err != nil {
			e.T.Fatalf("failed to decode job: %v", err)
		}
		if job.Status == string(domain.AttributionJobStatusCompleted) || job.Status == string(domain.AttributionJobStatusFailed) {
			return job
		}
		time.Sleep(workerInterval)
	}
	e.T.Fatalf("job %s still %s after %v", id, job.Status, timeout)
	return job
}

// bagOfWords is a deterministic stand-in for the embedding provider: texts
// sharing words get similar vectors.
type bagOfWords struct{}

func (bagOfWords) Dimensions() int { return embeddingDims }

func (bagOfWords) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, embeddingDims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(word, ".,;:!?\"'")))
			v[h.Sum32()%embeddingDims]++
		}
		out[i] = v
	}
	return out, nil
}

func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	logger := zap.NewNop()

	documentRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewAttributionJobRepository(pool)
	tx := repository.NewTxRunner(pool)

	clusters := service.NewClusterService(service.ClusterServiceDeps{
		Documents: documentRepo,
		Runs:      repository.NewClusterRunRepository(pool),
		Tx:        tx,
		Archive:   s3Client,
		Logger:    logger,
	})

	embedder := service.NewDenseEmbedder(bagOfWords{}, service.DefaultEmbedderConfig(), logger)
	attribution, err := service.NewAttributionService(service.AttributionServiceDeps{
		Attributors: map[domain.AttributionStrategy]service.Attributor{
			domain.StrategySimilarity: service.NewSimilarityAttributor(embedder, repository.NewChunkEmbeddingRepository(pool), logger).WithModel("bag-of-words"),
		},
		DefaultStrategy:  domain.StrategySimilarity,
		DefaultThreshold: 0.6,
		Documents:        documentRepo,
		Entries:          repository.NewAttributionRepository(pool),
		Tx:               tx,
		Archive:          s3Client,
		Logger:           logger,
	})
	if err != nil {
		t.Fatalf("failed to build attribution service: %v", err)
	}

	worker := jobs.NewWorker(jobs.NewAttributionWorker(jobRepo, attribution, logger), workerInterval, logger)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)

	router := server.NewRouter(server.RouterConfig{
		TokenValidator:     middleware.StaticToken{Token: apiToken},
		Logger:             logger,
		Health:             pool,
		DocumentHandler:    handlers.NewDocumentHandler(service.NewDocumentService(documentRepo, logger)),
		ClusterRunHandler:  handlers.NewClusterRunHandler(clusters, service.ClusterParams{Eps: 0.7, MinSamples: 2}, 48*time.Hour),
		AttributionHandler: handlers.NewAttributionHandler(service.NewAttributionJobService(jobRepo, documentRepo, domain.StrategySimilarity, 0.6), attribution),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		stopWorker()
		worker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
