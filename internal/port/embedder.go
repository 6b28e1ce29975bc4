package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// EmbeddingCache stores previously computed vectors keyed by text.
type EmbeddingCache interface {
	// Lookup returns one slot per text; missing entries are nil.
	Lookup(texts []string) ([][]float32, error)

	// Store saves vectors for the given texts.
	Store(texts []string, vectors [][]float32) error
}
