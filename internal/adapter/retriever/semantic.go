package retriever

import (
	"context"
	"fmt"

	"nutriguide/internal/adapter/analyzer"
	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

// DefaultTopK is used when a caller passes k <= 0.
const DefaultTopK = 1

// SemanticRetriever embeds the normalized query and searches the index.
type SemanticRetriever struct {
	embedder    port.Embedder
	index       port.Index
	defaultTopK int
}

func NewSemanticRetriever(embedder port.Embedder, index port.Index, defaultTopK int) (*SemanticRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("semantic retriever: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("semantic retriever: index must not be nil")
	}
	if embedder.Dimension() != index.Dimension() {
		return nil, &domain.DimensionMismatchError{Expected: index.Dimension(), Got: embedder.Dimension()}
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &SemanticRetriever{
		embedder:    embedder,
		index:       index,
		defaultTopK: defaultTopK,
	}, nil
}

func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.QueryResult, error) {
	if k <= 0 {
		k = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{analyzer.Normalize(query)})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := r.index.Search(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if results == nil {
		results = []domain.QueryResult{}
	}

	return results, nil
}
