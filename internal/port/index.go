package port

import "nutriguide/internal/domain"

// Index is an in-memory knowledge base of embedded documents.
type Index interface {
	// Create (re)initializes an empty knowledge base. Prior contents are dropped.
	Create(dimension int, metric string) error

	// Upsert assigns ids 0..n-1 to the batch and stores it, replacing
	// documents with the same id. Nothing is stored if any vector has the
	// wrong dimension.
	Upsert(entries []IndexEntry) error

	// Swap atomically replaces all documents with entries, assigning ids
	// 0..n-1. Nothing changes if any vector has the wrong dimension.
	Swap(entries []IndexEntry) error

	// Search returns up to k documents by descending similarity, ties by
	// ascending id. Results are copies and may be modified by the caller.
	Search(query []float32, k int) ([]domain.QueryResult, error)

	// Reset drops all documents, keeping dimension and metric.
	Reset() error

	// Documents returns copies of the stored documents ordered by id.
	Documents() []domain.Document

	// Count returns the number of stored documents.
	Count() int

	// Dimension returns the configured vector dimension.
	Dimension() int

	// Generation changes on every mutation.
	Generation() uint64
}

// IndexEntry is a document before it has been assigned an id.
type IndexEntry struct {
	Question string
	Answer   string
	Vector   []float32
}
