package service

import (
	"context"
	"log"
	"strings"

	"github.com/medra-health/medirag/internal/domain"
	"github.com/medra-health/medirag/internal/telemetry"
)

// DefaultTopK is the number of chunks returned when the caller does not ask
// for a specific k.
const DefaultTopK = 4

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RetrievalService answers similarity queries over the vector index.
type RetrievalService struct {
	embedder QueryEmbedder
	index    VectorIndex
}

func NewRetrievalService(embedder QueryEmbedder, index VectorIndex) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve embeds the query and returns the k most similar chunks,
// best-first. When the query embedding itself fails, retrieval degrades
// rather than erroring: an empty result with degraded set to true. An empty
// index also yields an empty result with a nil error.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) (results []domain.RetrievedChunk, degraded bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, false, domain.ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Printf("query embedding failed, returning no results: %v", err)
		return []domain.RetrievedChunk{}, true, nil
	}

	results, err = s.index.Query(ctx, vector, k)
	if err != nil {
		span.SetError(err)
		return nil, false, err
	}
	if results == nil {
		results = []domain.RetrievedChunk{}
	}
	return results, false, nil
}
