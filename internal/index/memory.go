package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/medra-health/medirag/internal/domain"
)

// Memory is an in-process index using brute-force cosine similarity. It
// serves deployments without a Postgres backend and tests; contents do not
// survive a restart, so it is rebuilt from the document store on startup.
type Memory struct {
	mu         sync.RWMutex
	dimensions int
	entries    []domain.IndexEntry
	byID       map[string]int
}

func NewMemory(dimensions int) *Memory {
	return &Memory{
		dimensions: dimensions,
		byID:       make(map[string]int),
	}
}

// Ensure is a no-op: the in-process index always exists.
func (m *Memory) Ensure(ctx context.Context) error {
	return nil
}

// AddBatch appends entries, replacing any entry whose id is already present.
func (m *Memory) AddBatch(ctx context.Context, entries []domain.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return domain.ErrDimensionMismatch
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if pos, ok := m.byID[e.ID]; ok {
			m.entries[pos] = e
			continue
		}
		m.byID[e.ID] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return nil
}

// Query scans all entries and returns the top-k by cosine similarity,
// scored as 1/(1+distance). Ties keep insertion order.
func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	type scored struct {
		pos   int
		score float32
	}
	scores := make([]scored, len(m.entries))
	for i, e := range m.entries {
		distance := 1 - cosineSimilarity(e.Vector, vector)
		scores[i] = scored{pos: i, score: float32(1 / (1 + distance))}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]domain.RetrievedChunk, 0, k)
	for _, s := range scores[:k] {
		e := m.entries[s.pos]
		results = append(results, domain.RetrievedChunk{
			ID:    e.ID,
			Text:  e.Text,
			Score: s.score,
		})
	}
	return results, nil
}

// Clear drops all entries so the index can be rebuilt from scratch.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.byID = make(map[string]int)
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
