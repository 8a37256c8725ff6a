// Package index provides similarity-search backends behind a common
// contract. Two variants exist: an in-process brute-force index and a
// persistent pgvector-backed collection.
package index

import (
	"context"

	"github.com/medra-health/medirag/internal/domain"
)

// Index is the common contract over similarity-search backends.
//
// Query returns the k highest-similarity stored chunks ordered best-first,
// with ties broken by insertion order. An empty index yields an empty
// result, not an error. Both variants score results as 1/(1+d) where d is
// cosine distance, so rankings are comparable across backends.
type Index interface {
	// Ensure transitions the backing collection from Missing to Present,
	// creating it if needed. It is a no-op when the collection exists.
	Ensure(ctx context.Context) error

	// AddBatch stores entries. Every entry's vector dimension must equal
	// the index's configured dimension. Adding an existing id replaces it.
	AddBatch(ctx context.Context, entries []domain.IndexEntry) error

	// Query returns the top-k entries by similarity to the vector.
	Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error)

	// Clear removes every stored entry. Clearing a Missing collection is
	// a no-op.
	Clear(ctx context.Context) error
}
