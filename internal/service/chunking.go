package service

import (
	"github.com/medra-health/medirag/internal/domain"
)

// ChunkConfig controls the sliding-window chunker.
type ChunkConfig struct {
	// Size is the window length in characters.
	Size int
	// Overlap is how many trailing characters of one chunk reappear at the
	// start of the next. Must satisfy 0 <= Overlap < Size.
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// Validate checks the window parameters.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		return domain.ErrInvalidChunkConfig
	}
	return nil
}

// SplitChunks splits normalized text into an ordered sequence of overlapping
// fixed-size windows. The window advances by Size-Overlap characters each
// step and the last window may be shorter. Chunk order follows text order;
// SequenceIndex is monotonic. Empty text yields no chunks.
func SplitChunks(documentID, text string, cfg ChunkConfig) ([]domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := cfg.Size - cfg.Overlap

	chunks := make([]domain.Chunk, 0, (len(runes)+step-1)/step)
	for start, seq := 0, 0; start < len(runes); start, seq = start+step, seq+1 {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			SourceDocumentID: documentID,
			SequenceIndex:    seq,
			Text:             string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
