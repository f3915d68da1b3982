package embedding

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of texts sent per embedding request
const DefaultBatchSize = 64

// TextEmbedder embeds a list of texts, one vector per text in input order
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ProgressFunc is called after every completed batch
type ProgressFunc func(processed, total int)

// EmbedBatches embeds texts in batches of batchSize with at most maxConcurrent
// requests in flight. The result keeps input order. The first failure cancels
// the remaining batches.
func EmbedBatches(ctx context.Context, e TextEmbedder, texts []string, batchSize, maxConcurrent int, progress ProgressFunc) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	out := make([][]float32, len(texts))
	total := len(texts)

	var mu sync.Mutex
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)
		g.Go(func() error {
			vectors, err := e.EmbedTexts(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("failed to embed batch %d-%d: got %d vectors", start, end, len(vectors))
			}
			copy(out[start:end], vectors)

			mu.Lock()
			processed += end - start
			if progress != nil {
				progress(processed, total)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
