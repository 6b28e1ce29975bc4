package memstore

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

// MemoryIndex implements port.Index with an exact linear scan.
// Documents are kept in a slice indexed by id.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimension  int
	metric     string
	docs       []domain.Document
	generation uint64
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int, metric string) (*MemoryIndex, error) {
	idx := &MemoryIndex{}
	if err := idx.Create(dimension, metric); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *MemoryIndex) Create(dimension int, metric string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid index dimension: %d", dimension)
	}
	metric = strings.ToLower(strings.TrimSpace(metric))
	if metric == "" {
		metric = domain.MetricCosine
	}
	if metric != domain.MetricCosine {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedMetric, metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.metric = metric
	s.docs = nil
	s.generation++
	return nil
}

func (s *MemoryIndex) Upsert(entries []port.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return &domain.DimensionMismatchError{Expected: s.dimension, Got: len(e.Vector)}
		}
	}

	for i, e := range entries {
		doc := newDocument(i, e)
		if i < len(s.docs) {
			s.docs[i] = doc
		} else {
			s.docs = append(s.docs, doc)
		}
	}
	s.generation++
	return nil
}

// Swap replaces every document with entries in one step. Searches see
// either the old contents or the new ones, never a mix. Nothing changes if
// any vector has the wrong dimension.
func (s *MemoryIndex) Swap(entries []port.IndexEntry) error {
	s.mu.RLock()
	dimension := s.dimension
	s.mu.RUnlock()

	docs := make([]domain.Document, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dimension {
			return &domain.DimensionMismatchError{Expected: dimension, Got: len(e.Vector)}
		}
		docs[i] = newDocument(i, e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		return &domain.DimensionMismatchError{Expected: s.dimension, Got: dimension}
	}
	s.docs = docs
	s.generation++
	return nil
}

func newDocument(id int, e port.IndexEntry) domain.Document {
	return domain.Document{
		ID:        id,
		Question:  e.Question,
		Answer:    e.Answer,
		Embedding: slices.Clone(e.Vector),
	}
}

// cloneDocument copies the embedding so callers cannot write into the index.
func cloneDocument(d domain.Document) domain.Document {
	d.Embedding = slices.Clone(d.Embedding)
	return d
}

// Search finds the k nearest documents using cosine similarity.
func (s *MemoryIndex) Search(query []float32, k int) ([]domain.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, &domain.DimensionMismatchError{Expected: s.dimension, Got: len(query)}
	}
	if k <= 0 || len(s.docs) == 0 {
		return []domain.QueryResult{}, nil
	}

	scores := make([]domain.QueryResult, len(s.docs))
	for i, doc := range s.docs {
		scores[i] = domain.QueryResult{
			Document: doc,
			Score:    clampScore(cosineSimilarity(query, doc.Embedding)),
		}
	}

	// docs are already in id order, so a stable sort keeps ties by ascending id
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := scores[:k]
	for i := range results {
		results[i].Document = cloneDocument(results[i].Document)
	}
	return results, nil
}

func (s *MemoryIndex) Reset() error {
	s.mu.RLock()
	dimension, metric := s.dimension, s.metric
	s.mu.RUnlock()
	return s.Create(dimension, metric)
}

func (s *MemoryIndex) Documents() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, len(s.docs))
	for i, d := range s.docs {
		docs[i] = cloneDocument(d)
	}
	return docs
}

func (s *MemoryIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryIndex) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *MemoryIndex) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// clampScore keeps scores in [0,1]; opposite vectors count as unrelated and
// rounding can push a self-match just past 1.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
