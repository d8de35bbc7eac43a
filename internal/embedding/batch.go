package embedding

import (
	"context"
	"log/slog"
	"sync"
)

// Batcher embeds a list of texts item by item, degrading per-item
// failures to tagged results instead of failing the whole batch.
type Batcher struct {
	provider Provider
	workers  int
	logger   *slog.Logger
}

// NewBatcher creates a Batcher. workers bounds in-flight provider
// calls; values below 1 mean sequential.
func NewBatcher(provider Provider, workers int, logger *slog.Logger) *Batcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{provider: provider, workers: workers, logger: logger}
}

// EmbedAll embeds each text with one provider call per item and returns
// results in input order. Provider errors are recorded on the failing
// item only. Cancellation of ctx marks remaining items as failed.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))
	if len(texts) == 0 {
		return results
	}

	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup
	for i := range texts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[i] = Result{Err: err}
				return
			}
			vectors, err := b.provider.Embed(ctx, []string{texts[i]})
			if err != nil {
				b.logger.Warn("embedding item failed",
					"provider", b.provider.Name(), "item", i, "error", err)
				results[i] = Result{Err: err}
				return
			}
			if len(vectors) == 0 || len(vectors[0]) == 0 {
				b.logger.Warn("provider returned empty vector",
					"provider", b.provider.Name(), "item", i)
				results[i] = Result{Err: ErrEmptyVector}
				return
			}
			results[i] = Result{Vector: vectors[0]}
		}(i)
	}
	wg.Wait()
	return results
}
