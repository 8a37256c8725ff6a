package service

import (
	"context"
	"log"
	"path"

	"github.com/medra-health/medirag/internal/domain"
	"github.com/medra-health/medirag/internal/openai"
	"github.com/medra-health/medirag/internal/telemetry"
)

// DocumentStore is the blob storage surface the pipeline depends on.
type DocumentStore interface {
	Exists(ctx context.Context, contentID string) (bool, error)
	Put(ctx context.Context, key string, data []byte, filename, contentHash string) error
	Get(ctx context.Context, key string) ([]byte, *domain.StoredBlob, error)
	List(ctx context.Context, prefix string) ([]domain.StoredBlob, error)
	Delete(ctx context.Context, key string) error
}

// ChunkEmbedder converts chunk texts into vectors with per-batch failure
// isolation.
type ChunkEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) (*openai.BatchResult, error)
}

// VectorIndex is the similarity-search surface the pipeline writes into.
type VectorIndex interface {
	Ensure(ctx context.Context) error
	AddBatch(ctx context.Context, entries []domain.IndexEntry) error
	Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error)
	Clear(ctx context.Context) error
}

// IngestFile is one uploaded file handed to the pipeline.
type IngestFile struct {
	Filename string
	Data     []byte
}

// ReindexReport summarizes a bulk rebuild of the vector index from the
// document store.
type ReindexReport struct {
	Processed         int
	Failed            int
	IndexedChunkCount int
	SkippedChunkCount int
}

// IngestionService orchestrates ingestion: extract, normalize, dedup check,
// blob upload, chunk, embed, index. Failures are isolated to the document or
// batch they affect; there is no rollback, and re-ingesting the same content
// is a safe no-op on the store.
type IngestionService struct {
	store        DocumentStore
	embedder     ChunkEmbedder
	index        VectorIndex
	chunkCfg     ChunkConfig
	extractorFor func(filename string) TextExtractor
}

func NewIngestionService(store DocumentStore, embedder ChunkEmbedder, index VectorIndex, chunkCfg ChunkConfig) *IngestionService {
	return &IngestionService{
		store:        store,
		embedder:     embedder,
		index:        index,
		chunkCfg:     chunkCfg,
		extractorFor: ExtractorForFilename,
	}
}

func NewIngestionServiceWithExtractor(store DocumentStore, embedder ChunkEmbedder, index VectorIndex, chunkCfg ChunkConfig, extractorFor func(filename string) TextExtractor) *IngestionService {
	return &IngestionService{
		store:        store,
		embedder:     embedder,
		index:        index,
		chunkCfg:     chunkCfg,
		extractorFor: extractorFor,
	}
}

// Ingest processes a batch of uploaded files. Per file: extract text,
// normalize, compute the content id, skip the upload when the content is
// already stored, otherwise upload, then chunk. All chunks from all files
// are embedded and indexed together at the end. One file's failure never
// aborts its siblings; the report carries the per-item breakdown.
func (s *IngestionService) Ingest(ctx context.Context, files []IngestFile) (*domain.IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	report := &domain.IngestReport{}
	var chunks []domain.Chunk

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := domain.IngestItem{Filename: f.Filename}

		text, err := s.extractorFor(f.Filename).ExtractText(f.Data)
		if err != nil {
			log.Printf("extraction failed for %s, skipping document: %v", f.Filename, err)
			item.Error = err.Error()
			report.Failed = append(report.Failed, item)
			continue
		}

		doc := domain.NewDocument(f.Filename, f.Data, text)
		item.ContentID = doc.ContentID
		item.Key = domain.StorageKey(doc.ContentID, f.Filename)

		exists, err := s.store.Exists(ctx, doc.ContentID)
		if err != nil {
			log.Printf("dedup check failed for %s, skipping document: %v", f.Filename, err)
			item.Error = err.Error()
			report.Failed = append(report.Failed, item)
			continue
		}

		if exists {
			report.AlreadyPresent = append(report.AlreadyPresent, item)
		} else {
			if err := s.store.Put(ctx, item.Key, f.Data, f.Filename, doc.ContentID); err != nil {
				log.Printf("upload failed for %s, skipping document: %v", f.Filename, err)
				item.Error = err.Error()
				report.Failed = append(report.Failed, item)
				continue
			}
			report.Stored = append(report.Stored, item)
		}

		docChunks, err := SplitChunks(doc.ContentID, doc.NormalizedText, s.chunkCfg)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, docChunks...)
	}

	indexed, skipped, err := s.indexChunks(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	report.IndexedChunkCount = indexed
	report.SkippedChunkCount = skipped

	return report, nil
}

// ReindexAll rebuilds index entries for every blob in the document store:
// download, extract, normalize, chunk, then embed and index the combined
// chunk set. A blob that cannot be downloaded or parsed is counted as failed
// and the rebuild continues.
func (s *IngestionService) ReindexAll(ctx context.Context) (*ReindexReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ReindexAll", telemetry.SpanAttributes{
		Operation: "reindex",
	})
	defer span.End()

	blobs, err := s.store.List(ctx, domain.BlobKeyPrefix)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	report := &ReindexReport{}
	var chunks []domain.Chunk

	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, meta, err := s.store.Get(ctx, blob.Key)
		if err != nil {
			log.Printf("reindex: download failed for %s, continuing: %v", blob.Key, err)
			report.Failed++
			continue
		}

		filename := meta.Filename
		if filename == "" {
			filename = path.Base(blob.Key)
		}

		text, err := s.extractorFor(filename).ExtractText(data)
		if err != nil {
			log.Printf("reindex: extraction failed for %s, continuing: %v", blob.Key, err)
			report.Failed++
			continue
		}

		doc := domain.NewDocument(filename, data, text)
		docChunks, err := SplitChunks(doc.ContentID, doc.NormalizedText, s.chunkCfg)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, docChunks...)
		report.Processed++
	}

	entries, embedSkipped, err := s.embedChunks(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	// Embed before clearing so an embedding outage leaves the previous
	// index intact. Clearing drops entries for deleted documents.
	if len(entries) > 0 || len(chunks) == 0 {
		if err := s.index.Clear(ctx); err != nil {
			log.Printf("reindex: clear failed, stale entries may remain: %v", err)
		}
	} else {
		log.Printf("reindex: no chunks embedded, keeping existing index entries")
	}

	indexed, writeSkipped := s.writeEntries(ctx, entries)
	report.IndexedChunkCount = indexed
	report.SkippedChunkCount = embedSkipped + writeSkipped

	return report, nil
}

// DeleteDocument removes a stored blob by content id. Index entries for the
// content are left behind; a reindex rebuilds the index from what remains in
// the store.
func (s *IngestionService) DeleteDocument(ctx context.Context, contentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.DeleteDocument", telemetry.SpanAttributes{
		Operation: "delete",
	})
	defer span.End()

	blobs, err := s.store.List(ctx, domain.DedupPrefix(contentID))
	if err != nil {
		return err
	}
	if len(blobs) == 0 {
		return domain.ErrBlobNotFound
	}

	for _, blob := range blobs {
		if err := s.store.Delete(ctx, blob.Key); err != nil {
			return err
		}
	}
	return nil
}

// ListDocuments returns metadata for every stored blob.
func (s *IngestionService) ListDocuments(ctx context.Context) ([]domain.StoredBlob, error) {
	return s.store.List(ctx, domain.BlobKeyPrefix)
}

// GetDocument downloads the blob for a content id. When the content was
// uploaded under multiple names the first stored blob wins.
func (s *IngestionService) GetDocument(ctx context.Context, contentID string) ([]byte, *domain.StoredBlob, error) {
	blobs, err := s.store.List(ctx, domain.DedupPrefix(contentID))
	if err != nil {
		return nil, nil, err
	}
	if len(blobs) == 0 {
		return nil, nil, domain.ErrBlobNotFound
	}
	return s.store.Get(ctx, blobs[0].Key)
}

// indexChunks embeds the chunk texts and writes the successful vectors into
// the index. Embedding failures are already isolated per batch; an index
// write failure is logged and counted as skipped rather than aborting the
// caller's report.
func (s *IngestionService) indexChunks(ctx context.Context, chunks []domain.Chunk) (indexed, skipped int, err error) {
	entries, embedSkipped, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return 0, 0, err
	}
	indexed, writeSkipped := s.writeEntries(ctx, entries)
	return indexed, embedSkipped + writeSkipped, nil
}

// embedChunks converts chunks into index entries, dropping chunks whose
// embedding was skipped.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []domain.Chunk) (entries []domain.IndexEntry, skipped int, err error) {
	if len(chunks) == 0 {
		return nil, 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	result, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, 0, err
	}

	entries = make([]domain.IndexEntry, 0, len(result.Embedded))
	for _, e := range result.Embedded {
		c := chunks[e.Index]
		entries = append(entries, domain.IndexEntry{
			ID:     c.ID(),
			Text:   c.Text,
			Vector: e.Vector,
		})
	}
	return entries, result.Skipped, nil
}

// writeEntries stores entries in the index. A failure is logged and the
// entries counted as skipped rather than aborting the caller's report.
func (s *IngestionService) writeEntries(ctx context.Context, entries []domain.IndexEntry) (indexed, skipped int) {
	if len(entries) == 0 {
		return 0, 0
	}

	if err := s.index.Ensure(ctx); err != nil {
		log.Printf("index ensure failed, skipping %d chunks: %v", len(entries), err)
		return 0, len(entries)
	}
	if err := s.index.AddBatch(ctx, entries); err != nil {
		log.Printf("index write failed, skipping %d chunks: %v", len(entries), err)
		return 0, len(entries)
	}

	return len(entries), 0
}
