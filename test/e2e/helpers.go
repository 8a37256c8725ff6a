//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medra-health/medirag/internal/api/handlers"
	"github.com/medra-health/medirag/internal/index"
	"github.com/medra-health/medirag/internal/jobs"
	"github.com/medra-health/medirag/internal/openai"
	"github.com/medra-health/medirag/internal/server"
	"github.com/medra-health/medirag/internal/service"
	"github.com/medra-health/medirag/internal/storage"
	"github.com/medra-health/medirag/internal/testutil"
)

const (
	embeddingDims = 8
	fakeAnswer    = "The documents indicate aspirin reduces fever."
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	OpenAIStub   *httptest.Server
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers, an
// OpenAI-compatible stub and an in-process server.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	store, err := storage.NewS3Store(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 store: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	openAIStub := startOpenAIStub(t)

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, store, openAIStub.URL, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		OpenAIStub:   openAIStub,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.OpenAIStub != nil {
		e.OpenAIStub.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

// UploadFiles performs a multipart POST of in-memory files under "files".
func (e *E2ETestEnv) UploadFiles(path string, files map[string][]byte) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseAPIResponse(resp)
}

// DownloadRaw fetches a non-enveloped response body.
func (e *E2ETestEnv) DownloadRaw(path string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(e.ServerURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseAPIResponse(resp)
}

func parseAPIResponse(resp *http.Response) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startOpenAIStub serves the embeddings and chat completions endpoints with
// deterministic responses: the embedding of a text is derived from its hash,
// so identical texts always map to identical vectors.
func startOpenAIStub(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type embeddingData struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]embeddingData, len(req.Input))
		for i, text := range req.Input {
			data[i] = embeddingData{Embedding: deterministicVector(text), Index: i}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})

	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": fakeAnswer}},
			},
		})
	})

	return httptest.NewServer(mux)
}

// deterministicVector maps a text to a stable positive vector.
func deterministicVector(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	vector := make([]float32, embeddingDims)
	for i := 0; i < embeddingDims; i++ {
		bits := binary.BigEndian.Uint32(hash[i*4 : i*4+4])
		vector[i] = float32(bits%1000)/1000.0 + 0.001
	}
	return vector
}

// startServer wires the full service graph against the containers and the
// OpenAI stub, and starts an HTTP server on the given port.
func startServer(t *testing.T, pool *pgxpool.Pool, store *storage.S3Store, openAIURL string, port int) (string, func()) {
	ctx := context.Background()

	embedClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              "test-key",
		BaseURL:             openAIURL,
		EmbeddingModel:      "test-embedding",
		EmbeddingDimensions: embeddingDims,
	})
	chatClient := openai.NewChatClient("test-key", openAIURL, "test-chat", 0)

	idx, err := index.NewPostgres(pool, "e2e_chunks", embeddingDims)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	if err := idx.Ensure(ctx); err != nil {
		t.Fatalf("failed to ensure index: %v", err)
	}

	chunkCfg := service.ChunkConfig{Size: 500, Overlap: 50}
	ingestionSvc := service.NewIngestionService(store, embedClient, idx, chunkCfg)
	retrievalSvc := service.NewRetrievalService(embedClient, idx)
	chatSvc := service.NewChatService(retrievalSvc, chatClient)

	reindexProcessor := jobs.NewReindexWorker(ingestionSvc)
	worker := jobs.NewWorker(reindexProcessor, time.Hour)
	go worker.Start(ctx)

	cfg := server.RouterConfig{
		DocumentsHandler: handlers.NewDocumentsHandler(ingestionSvc),
		SearchHandler:    handlers.NewSearchHandler(retrievalSvc, chatSvc),
		ReindexHandler: handlers.NewReindexHandler(func() {
			reindexProcessor.Request()
			worker.Kick()
		}),
	}

	router := server.NewRouter(cfg)

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
		worker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
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
