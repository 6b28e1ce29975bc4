package embedding

import (
	"context"
	"fmt"

	"nutriguide/internal/port"
)

// CachedEmbedder serves vectors from a cache and only embeds texts it has not
// seen before.
type CachedEmbedder struct {
	inner port.Embedder
	cache port.EmbeddingCache
}

func NewCachedEmbedder(inner port.Embedder, cache port.EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cached, err := e.cache.Lookup(texts)
	if err != nil {
		return nil, fmt.Errorf("embedding cache lookup failed: %w", err)
	}

	var missing []string
	var missingIdx []int
	for i, vec := range cached {
		if vec == nil {
			missing = append(missing, texts[i])
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) == 0 {
		return cached, nil
	}

	fresh, err := e.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missing))
	}
	if err := e.cache.Store(missing, fresh); err != nil {
		return nil, fmt.Errorf("embedding cache store failed: %w", err)
	}

	for j, i := range missingIdx {
		cached[i] = fresh[j]
	}
	return cached, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}
