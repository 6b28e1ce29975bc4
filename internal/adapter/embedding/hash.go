package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"nutriguide/internal/adapter/analyzer"
)

// DefaultDimension matches the 384-dimensional sentence models the knowledge
// base was designed around.
const DefaultDimension = 384

const (
	wordWeight    = 1.0
	trigramWeight = 0.5
)

// HashEmbedder is a local, deterministic embedder based on feature hashing of
// words and character trigrams. Identical normalized text always yields an
// identical unit vector.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	acc := make([]float64, e.dimension)

	words := e.tokenizer.Tokenize(text)
	if len(words) == 0 {
		// text made only of stopwords still deserves a vector
		words = analyzer.NewTokenizer(false).Tokenize(text)
	}

	for _, w := range words {
		e.add(acc, "w:"+w, wordWeight)
		padded := []rune("#" + w + "#")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(acc, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	inv := 1 / math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v * inv)
	}
	return vec
}

func (e *HashEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash-trigram-v1"
}
