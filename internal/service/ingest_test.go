package service

import (
	"context"
	"errors"
	"testing"

	"github.com/medra-health/medirag/internal/domain"
	"github.com/medra-health/medirag/internal/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Exists(ctx context.Context, contentID string) (bool, error) {
	args := m.Called(ctx, contentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentStore) Put(ctx context.Context, key string, data []byte, filename, contentHash string) error {
	args := m.Called(ctx, key, data, filename, contentHash)
	return args.Error(0)
}

func (m *MockDocumentStore) Get(ctx context.Context, key string) ([]byte, *domain.StoredBlob, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).(*domain.StoredBlob), args.Error(2)
}

func (m *MockDocumentStore) List(ctx context.Context, prefix string) ([]domain.StoredBlob, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredBlob), args.Error(1)
}

func (m *MockDocumentStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockChunkEmbedder is a mock implementation of ChunkEmbedder
type MockChunkEmbedder struct {
	mock.Mock
}

func (m *MockChunkEmbedder) EmbedBatch(ctx context.Context, texts []string) (*openai.BatchResult, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.BatchResult), args.Error(1)
}

// MockVectorIndex is a mock implementation of VectorIndex
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Ensure(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVectorIndex) AddBatch(ctx context.Context, entries []domain.IndexEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedChunk), args.Error(1)
}

func (m *MockVectorIndex) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// stubExtractor treats bytes as text or fails with a fixed error.
type stubExtractor struct {
	err error
}

func (s stubExtractor) ExtractText(data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return string(data), nil
}

func embedAll(texts []string) *openai.BatchResult {
	result := &openai.BatchResult{}
	for i := range texts {
		result.Embedded = append(result.Embedded, openai.EmbeddedText{
			Index:  i,
			Vector: []float32{float32(i), 1},
		})
	}
	return result
}

var testChunkCfg = ChunkConfig{Size: 50, Overlap: 10}

func TestIngestionService_Ingest_StoresAndIndexes(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	text := "Patient presents with stable vitals."
	contentID := domain.ContentID(domain.NormalizeText(text))
	key := domain.StorageKey(contentID, "visit.txt")

	mockStore.On("Exists", mock.Anything, contentID).Return(false, nil)
	mockStore.On("Put", mock.Anything, key, []byte(text), "visit.txt", contentID).Return(nil)
	mockEmbedder.On("EmbedBatch", mock.Anything, []string{text}).Return(embedAll([]string{text}), nil)
	mockIndex.On("Ensure", mock.Anything).Return(nil)
	mockIndex.On("AddBatch", mock.Anything, mock.MatchedBy(func(entries []domain.IndexEntry) bool {
		return len(entries) == 1 && entries[0].ID == contentID+":0000" && entries[0].Text == text
	})).Return(nil)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.Ingest(ctx, []IngestFile{{Filename: "visit.txt", Data: []byte(text)}})

	require.NoError(t, err)
	require.Len(t, report.Stored, 1)
	assert.Equal(t, contentID, report.Stored[0].ContentID)
	assert.Equal(t, key, report.Stored[0].Key)
	assert.Empty(t, report.AlreadyPresent)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, report.IndexedChunkCount)
	assert.Equal(t, 0, report.SkippedChunkCount)
	mockStore.AssertExpectations(t)
	mockIndex.AssertExpectations(t)
}

func TestIngestionService_Ingest_AlreadyPresentSkipsUpload(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	text := "Duplicate lab panel results."
	contentID := domain.ContentID(domain.NormalizeText(text))

	mockStore.On("Exists", mock.Anything, contentID).Return(true, nil)
	mockEmbedder.On("EmbedBatch", mock.Anything, []string{text}).Return(embedAll([]string{text}), nil)
	mockIndex.On("Ensure", mock.Anything).Return(nil)
	mockIndex.On("AddBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.Ingest(ctx, []IngestFile{{Filename: "labs.txt", Data: []byte(text)}})

	require.NoError(t, err)
	assert.Empty(t, report.Stored)
	require.Len(t, report.AlreadyPresent, 1)
	assert.Equal(t, contentID, report.AlreadyPresent[0].ContentID)
	assert.Equal(t, 1, report.IndexedChunkCount)
	mockStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestionService_Ingest_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	extractorFor := func(filename string) TextExtractor {
		if filename == "corrupt.pdf" {
			return stubExtractor{err: errors.New("malformed xref table")}
		}
		return stubExtractor{}
	}

	textA := "First consultation note."
	textC := "Third consultation note."

	mockStore.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	mockStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockEmbedder.On("EmbedBatch", mock.Anything, []string{textA, textC}).Return(embedAll([]string{textA, textC}), nil)
	mockIndex.On("Ensure", mock.Anything).Return(nil)
	mockIndex.On("AddBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestionServiceWithExtractor(mockStore, mockEmbedder, mockIndex, testChunkCfg, extractorFor)

	report, err := svc.Ingest(ctx, []IngestFile{
		{Filename: "a.txt", Data: []byte(textA)},
		{Filename: "corrupt.pdf", Data: []byte("%garbage%")},
		{Filename: "c.txt", Data: []byte(textC)},
	})

	require.NoError(t, err)
	assert.Len(t, report.Stored, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "corrupt.pdf", report.Failed[0].Filename)
	assert.Contains(t, report.Failed[0].Error, "malformed xref table")
	assert.Equal(t, 2, report.IndexedChunkCount)
}

func TestIngestionService_Ingest_UploadFailureIsolated(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	textA := "Uploadable note."
	textB := "Unuploadable note."
	idA := domain.ContentID(domain.NormalizeText(textA))
	idB := domain.ContentID(domain.NormalizeText(textB))

	mockStore.On("Exists", mock.Anything, idA).Return(false, nil)
	mockStore.On("Exists", mock.Anything, idB).Return(false, nil)
	mockStore.On("Put", mock.Anything, domain.StorageKey(idA, "a.txt"), mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockStore.On("Put", mock.Anything, domain.StorageKey(idB, "b.txt"), mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrStoreUnavailable)
	mockEmbedder.On("EmbedBatch", mock.Anything, []string{textA}).Return(embedAll([]string{textA}), nil)
	mockIndex.On("Ensure", mock.Anything).Return(nil)
	mockIndex.On("AddBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.Ingest(ctx, []IngestFile{
		{Filename: "a.txt", Data: []byte(textA)},
		{Filename: "b.txt", Data: []byte(textB)},
	})

	require.NoError(t, err)
	assert.Len(t, report.Stored, 1)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "b.txt", report.Failed[0].Filename)
	assert.Equal(t, 1, report.IndexedChunkCount)
}

func TestIngestionService_Ingest_SkippedEmbeddingsCounted(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	textA := "Embedded note."
	textB := "Skipped note."

	mockStore.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	mockStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockEmbedder.On("EmbedBatch", mock.Anything, []string{textA, textB}).Return(&openai.BatchResult{
		Embedded: []openai.EmbeddedText{{Index: 0, Vector: []float32{1, 2}}},
		Skipped:  1,
	}, nil)
	mockIndex.On("Ensure", mock.Anything).Return(nil)
	mockIndex.On("AddBatch", mock.Anything, mock.MatchedBy(func(entries []domain.IndexEntry) bool {
		return len(entries) == 1 && entries[0].Text == textA
	})).Return(nil)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.Ingest(ctx, []IngestFile{
		{Filename: "a.txt", Data: []byte(textA)},
		{Filename: "b.txt", Data: []byte(textB)},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.IndexedChunkCount)
	assert.Equal(t, 1, report.SkippedChunkCount)
}

func TestIngestionService_Ingest_IndexWriteFailureCountsSkipped(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	text := "Indexable note."

	mockStore.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	mockStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(embedAll([]string{text}), nil)
	mockIndex.On("Ensure", mock.Anything).Return(nil)
	mockIndex.On("AddBatch", mock.Anything, mock.Anything).Return(domain.ErrIndexUnavailable)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.Ingest(ctx, []IngestFile{{Filename: "a.txt", Data: []byte(text)}})

	require.NoError(t, err)
	assert.Len(t, report.Stored, 1)
	assert.Equal(t, 0, report.IndexedChunkCount)
	assert.Equal(t, 1, report.SkippedChunkCount)
}

func TestIngestionService_Ingest_EmptyBatch(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.Ingest(ctx, nil)

	require.NoError(t, err)
	assert.Empty(t, report.Stored)
	assert.Equal(t, 0, report.IndexedChunkCount)
	mockEmbedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
	mockIndex.AssertNotCalled(t, "AddBatch", mock.Anything, mock.Anything)
}

func TestIngestionService_Ingest_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	_, err := svc.Ingest(ctx, []IngestFile{{Filename: "a.txt", Data: []byte("note")}})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestionService_ReindexAll_ContinuesPastFailingBlob(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	text := "Recovered consultation note."

	blobs := []domain.StoredBlob{
		{Key: "documents/aaa/broken.txt", Filename: "broken.txt"},
		{Key: "documents/bbb/good.txt", Filename: "good.txt"},
	}

	mockStore.On("List", mock.Anything, domain.BlobKeyPrefix).Return(blobs, nil)
	mockStore.On("Get", mock.Anything, "documents/aaa/broken.txt").
		Return(nil, nil, domain.ErrStoreUnavailable)
	mockStore.On("Get", mock.Anything, "documents/bbb/good.txt").
		Return([]byte(text), &domain.StoredBlob{Key: "documents/bbb/good.txt", Filename: "good.txt"}, nil)
	mockEmbedder.On("EmbedBatch", mock.Anything, []string{text}).Return(embedAll([]string{text}), nil)
	mockIndex.On("Clear", mock.Anything).Return(nil)
	mockIndex.On("Ensure", mock.Anything).Return(nil)
	mockIndex.On("AddBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.ReindexAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.IndexedChunkCount)
	mockIndex.AssertCalled(t, "Clear", mock.Anything)
}

func TestIngestionService_ReindexAll_EmptyStoreClearsIndex(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	mockStore.On("List", mock.Anything, domain.BlobKeyPrefix).Return([]domain.StoredBlob{}, nil)
	mockIndex.On("Clear", mock.Anything).Return(nil)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.ReindexAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, report.IndexedChunkCount)
	mockIndex.AssertCalled(t, "Clear", mock.Anything)
	mockEmbedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
}

func TestIngestionService_ReindexAll_EmbeddingOutageKeepsIndex(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	text := "Temporarily unembeddable note."
	blobs := []domain.StoredBlob{{Key: "documents/aaa/note.txt", Filename: "note.txt"}}

	mockStore.On("List", mock.Anything, domain.BlobKeyPrefix).Return(blobs, nil)
	mockStore.On("Get", mock.Anything, "documents/aaa/note.txt").
		Return([]byte(text), &domain.StoredBlob{Key: "documents/aaa/note.txt", Filename: "note.txt"}, nil)
	mockEmbedder.On("EmbedBatch", mock.Anything, []string{text}).
		Return(&openai.BatchResult{Skipped: 1}, nil)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	report, err := svc.ReindexAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.IndexedChunkCount)
	assert.Equal(t, 1, report.SkippedChunkCount)
	mockIndex.AssertNotCalled(t, "Clear", mock.Anything)
}

func TestIngestionService_ReindexAll_ListFailureAborts(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)
	mockEmbedder := new(MockChunkEmbedder)
	mockIndex := new(MockVectorIndex)

	mockStore.On("List", mock.Anything, domain.BlobKeyPrefix).Return(nil, domain.ErrStoreUnavailable)

	svc := NewIngestionService(mockStore, mockEmbedder, mockIndex, testChunkCfg)

	_, err := svc.ReindexAll(ctx)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestIngestionService_DeleteDocument_RemovesAllKeys(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)

	contentID := "abc123"
	blobs := []domain.StoredBlob{
		{Key: "documents/abc123/report.pdf"},
	}

	mockStore.On("List", mock.Anything, domain.DedupPrefix(contentID)).Return(blobs, nil)
	mockStore.On("Delete", mock.Anything, "documents/abc123/report.pdf").Return(nil)

	svc := NewIngestionService(mockStore, new(MockChunkEmbedder), new(MockVectorIndex), testChunkCfg)

	err := svc.DeleteDocument(ctx, contentID)

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestIngestionService_DeleteDocument_NotFound(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockDocumentStore)

	mockStore.On("List", mock.Anything, mock.Anything).Return([]domain.StoredBlob{}, nil)

	svc := NewIngestionService(mockStore, new(MockChunkEmbedder), new(MockVectorIndex), testChunkCfg)

	err := svc.DeleteDocument(ctx, "missing")

	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}
