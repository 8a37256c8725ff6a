package domain

import (
	"fmt"
	"time"
)

// Document represents an uploaded medical document moving through ingestion.
// NormalizedText and ContentID are derived once at ingestion entry and never
// mutated afterwards.
type Document struct {
	Filename       string
	RawBytes       []byte
	NormalizedText string
	ContentID      string
}

// NewDocument creates a Document from raw bytes and its extracted text,
// deriving the normalized text and content identifier.
func NewDocument(filename string, raw []byte, extractedText string) *Document {
	normalized := NormalizeText(extractedText)
	return &Document{
		Filename:       filename,
		RawBytes:       raw,
		NormalizedText: normalized,
		ContentID:      ContentID(normalized),
	}
}

// Chunk is a bounded-length, possibly overlapping substring of a document.
// It is the unit of embedding and retrieval. Chunks form an ordered sequence
// over their source document.
type Chunk struct {
	SourceDocumentID string
	SequenceIndex    int
	Text             string
}

// ID returns the chunk identifier, unique within a vector index as long as
// content identifiers are unique.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s:%04d", c.SourceDocumentID, c.SequenceIndex)
}

// EmbeddingVector pairs a chunk with its successfully computed embedding.
// A chunk whose embedding call failed has no EmbeddingVector.
type EmbeddingVector struct {
	ChunkID string
	Values  []float32
}

// Dimension returns the number of components in the vector.
func (v EmbeddingVector) Dimension() int {
	return len(v.Values)
}

// IndexEntry is the stored unit inside a vector index.
type IndexEntry struct {
	ID     string
	Text   string
	Vector []float32
}

// StoredBlob describes an object held by the document store.
type StoredBlob struct {
	Key          string
	Filename     string
	ContentHash  string
	Size         int64
	LastModified time.Time
}

// IngestItem records the outcome of one document within an ingestion batch.
type IngestItem struct {
	Filename  string
	ContentID string
	Key       string
	Error     string
}

// IngestReport is the structured result of an ingestion batch. Failures are
// per item; a populated Failed slice does not imply the batch failed.
type IngestReport struct {
	Stored            []IngestItem
	AlreadyPresent    []IngestItem
	Failed            []IngestItem
	IndexedChunkCount int
	SkippedChunkCount int
}

// RetrievedChunk is a chunk returned from similarity search, ranked
// best-first by Score.
type RetrievedChunk struct {
	ID    string
	Text  string
	Score float32
}
