package openai

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingAPI is a mock for the embeddings API
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func vectorsOf(dim int, count int) [][]float32 {
	out := make([][]float32, count)
	for i := range out {
		v := make([]float32, dim)
		v[0] = float32(i + 1)
		out[i] = v
	}
	return out
}

func TestClient_EmbedBatch_AllSucceed(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 4, batchSize: 2, workers: 1, timeout: DefaultRequestTimeout}

	texts := []string{"a", "b", "c"}
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"a", "b"}).Return(vectorsOf(4, 2), nil)
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"c"}).Return(vectorsOf(4, 1), nil)

	result, err := client.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, result.Embedded, 3)
	assert.Equal(t, 0, result.Skipped)
	for i, e := range result.Embedded {
		assert.Equal(t, i, e.Index)
	}
	mockAPI.AssertExpectations(t)
}

func TestClient_EmbedBatch_FailedBatchIsSkippedNotFatal(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 4, batchSize: 2, workers: 1, timeout: DefaultRequestTimeout}

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"a", "b"}).Return(nil, errors.New("rate limit"))
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"c", "d"}).Return(vectorsOf(4, 2), nil)

	result, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c", "d"})

	require.NoError(t, err)
	assert.Len(t, result.Embedded, 2)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 2, result.Embedded[0].Index)
	assert.Equal(t, 3, result.Embedded[1].Index)
	mockAPI.AssertExpectations(t)
}

func TestClient_EmbedBatch_CountMismatchTruncates(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 4, batchSize: 8, workers: 1, timeout: DefaultRequestTimeout}

	texts := []string{"t1", "t2", "t3", "t4", "t5"}
	// Backend returns 3 vectors for 5 texts.
	mockAPI.On("CreateEmbeddings", mock.Anything, texts).Return(vectorsOf(4, 3), nil)

	result, err := client.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, result.Embedded, 3)
	assert.Equal(t, 2, result.Skipped)
	mockAPI.AssertExpectations(t)
}

func TestClient_EmbedBatch_WrongDimensionVectorDropped(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 4, batchSize: 8, workers: 1, timeout: DefaultRequestTimeout}

	vectors := vectorsOf(4, 2)
	vectors[1] = []float32{1, 2} // wrong dimension
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"a", "b"}).Return(vectors, nil)

	result, err := client.EmbedBatch(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Len(t, result.Embedded, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Embedded[0].Index)
}

func TestClient_EmbedBatch_EmptyInput(t *testing.T) {
	client := &Client{api: new(MockEmbeddingAPI), dimensions: 4, batchSize: 8, workers: 1, timeout: DefaultRequestTimeout}

	result, err := client.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, result.Embedded)
	assert.Equal(t, 0, result.Skipped)
}

func TestClient_EmbedBatch_ConcurrentBatchesKeepInputOrder(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 4, batchSize: 1, workers: 4, timeout: DefaultRequestTimeout}

	texts := []string{"a", "b", "c", "d", "e", "f"}
	for _, tx := range texts {
		mockAPI.On("CreateEmbeddings", mock.Anything, []string{tx}).Return(vectorsOf(4, 1), nil)
	}

	result, err := client.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, result.Embedded, len(texts))
	assert.True(t, sort.SliceIsSorted(result.Embedded, func(i, j int) bool {
		return result.Embedded[i].Index < result.Embedded[j].Index
	}))
}

func TestClient_EmbedQuery_Success(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 4, batchSize: 8, workers: 1, timeout: DefaultRequestTimeout}

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"headache"}).Return(vectorsOf(4, 1), nil)

	vector, err := client.EmbedQuery(context.Background(), "headache")

	require.NoError(t, err)
	assert.Len(t, vector, 4)
}

func TestClient_EmbedQuery_EmptyText(t *testing.T) {
	client := NewClient("test-key")

	vector, err := client.EmbedQuery(context.Background(), "")

	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Nil(t, vector)
}

func TestClient_EmbedQuery_APIError(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 4, batchSize: 8, workers: 1, timeout: DefaultRequestTimeout}

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"q"}).Return(nil, errors.New("service unavailable"))

	vector, err := client.EmbedQuery(context.Background(), "q")

	assert.Error(t, err)
	assert.Nil(t, vector)
	assert.Contains(t, err.Error(), "failed to create embedding")
}

func TestClient_EmbedQuery_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: 1536, batchSize: 8, workers: 1, timeout: DefaultRequestTimeout}

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"q"}).Return(vectorsOf(512, 1), nil)

	vector, err := client.EmbedQuery(context.Background(), "q")

	assert.Error(t, err)
	assert.Nil(t, vector)
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "k"})

	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)
	assert.Equal(t, DefaultBatchSize, client.batchSize)
	assert.Equal(t, DefaultWorkers, client.workers)
	assert.Equal(t, DefaultRequestTimeout, client.timeout)
}
