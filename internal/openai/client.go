package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultBatchSize is the maximum number of texts sent per embeddings request
	DefaultBatchSize = 64
	// DefaultRequestTimeout bounds a single remote embeddings call
	DefaultRequestTimeout = 30 * time.Second
	// DefaultWorkers bounds concurrent embeddings requests
	DefaultWorkers = 4
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoEmbedding is returned when the response carries no embedding data
	ErrNoEmbedding = errors.New("no embedding data returned")
)

// EmbeddingAPI defines the interface for a single batched embeddings call.
// The returned slice is position-aligned with the input texts.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIAdapter implements EmbeddingAPI against the OpenAI embeddings endpoint.
type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIAdapter creates an adapter for the given key, optional base URL
// (for OpenAI-compatible self-hosted endpoints) and model.
func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// CreateEmbeddings calls the embeddings API for one batch of texts.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbedding
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Config holds embedding client configuration.
type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	BatchSize           int
	Workers             int
	RequestTimeout      time.Duration
}

// Client converts batches of chunk texts into vectors, isolating failures
// per batch: a failed batch is skipped, never fatal to the whole call.
type Client struct {
	api        EmbeddingAPI
	dimensions int
	batchSize  int
	workers    int
	timeout    time.Duration
}

// NewClient creates a new embedding client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new embedding client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, openai.EmbeddingModel(cfg.EmbeddingModel)),
		dimensions: dimensions,
		batchSize:  batchSize,
		workers:    workers,
		timeout:    timeout,
	}
}

// EmbeddedText pairs an input position with its vector.
type EmbeddedText struct {
	Index  int
	Vector []float32
}

// BatchResult is the outcome of embedding a sequence of texts. Embedded is
// ordered by input position; Skipped counts texts that have no vector.
type BatchResult struct {
	Embedded []EmbeddedText
	Skipped  int
}

// EmbedBatch embeds texts in batches of at most the configured batch size.
// A failed batch is logged and skipped; a response with fewer vectors than
// inputs is truncated to the shorter length (vectors are never fabricated)
// and the remainder counted as skipped. Batches run on a bounded worker
// pool; output order follows input order regardless of completion order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	if len(texts) == 0 {
		return &BatchResult{}, nil
	}

	type batch struct {
		start int
		texts []string
	}

	var batches []batch
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	results := make([][]EmbeddedText, len(batches))
	skipped := make([]int, len(batches))

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.workers)
	for i, b := range batches {
		wg.Add(1)
		go func(i int, b batch) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				skipped[i] = len(b.texts)
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			vectors, err := c.api.CreateEmbeddings(callCtx, b.texts)
			if err != nil {
				log.Printf("embedding batch at offset %d failed, skipping %d texts: %v", b.start, len(b.texts), err)
				skipped[i] = len(b.texts)
				return
			}

			n := len(vectors)
			if n != len(b.texts) {
				log.Printf("embedding count mismatch at offset %d: requested %d, got %d", b.start, len(b.texts), n)
				if n > len(b.texts) {
					n = len(b.texts)
				}
				skipped[i] = len(b.texts) - n
			}

			embedded := make([]EmbeddedText, 0, n)
			for j := 0; j < n; j++ {
				if len(vectors[j]) != c.dimensions {
					log.Printf("embedding at offset %d has dimension %d, expected %d, skipping", b.start+j, len(vectors[j]), c.dimensions)
					skipped[i]++
					continue
				}
				embedded = append(embedded, EmbeddedText{Index: b.start + j, Vector: vectors[j]})
			}
			results[i] = embedded
		}(i, b)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &BatchResult{}
	for i := range batches {
		out.Embedded = append(out.Embedded, results[i]...)
		out.Skipped += skipped[i]
	}
	return out, nil
}

// EmbedQuery embeds a single query text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.api.CreateEmbeddings(callCtx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, ErrNoEmbedding
	}
	if len(vectors[0]) != c.dimensions {
		return nil, fmt.Errorf("embedding has dimension %d, expected %d", len(vectors[0]), c.dimensions)
	}

	return vectors[0], nil
}

// Dimensions returns the expected embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}
