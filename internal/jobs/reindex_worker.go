package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/medra-health/medirag/internal/service"
)

// Reindexer rebuilds the vector index from the document store.
type Reindexer interface {
	ReindexAll(ctx context.Context) (*service.ReindexReport, error)
}

// ReindexWorker runs requested index rebuilds. Requests coalesce: many
// triggers while a rebuild is pending result in a single rebuild.
type ReindexWorker struct {
	reindexer Reindexer
	requests  chan struct{}
}

// NewReindexWorker creates a new ReindexWorker instance
func NewReindexWorker(reindexer Reindexer) *ReindexWorker {
	return &ReindexWorker{
		reindexer: reindexer,
		requests:  make(chan struct{}, 1),
	}
}

// Request schedules a rebuild for the next processing cycle.
func (w *ReindexWorker) Request() {
	select {
	case w.requests <- struct{}{}:
	default:
	}
}

// ProcessJobs implements the JobProcessor interface. It runs a rebuild when
// one has been requested and is a no-op otherwise.
func (w *ReindexWorker) ProcessJobs(ctx context.Context) error {
	select {
	case <-w.requests:
	default:
		return nil
	}

	log.Printf("Reindex started: rebuilding vector index from document store")

	report, err := w.reindexer.ReindexAll(ctx)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	log.Printf("Reindex complete: processed=%d failed=%d indexed=%d skipped=%d",
		report.Processed, report.Failed, report.IndexedChunkCount, report.SkippedChunkCount)
	return nil
}
