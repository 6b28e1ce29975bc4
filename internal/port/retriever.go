package port

import (
	"context"

	"nutriguide/internal/domain"
)

// Retriever turns a raw query into a ranked result list.
type Retriever interface {
	// Retrieve returns up to k results. An empty slice means no knowledge is available.
	Retrieve(ctx context.Context, query string, k int) ([]domain.QueryResult, error)
}
