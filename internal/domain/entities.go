package domain

import "time"

// MetricCosine is the only similarity metric the index supports.
const MetricCosine = "cosine"

// FAQ is one group of a dataset file: several phrasings of a question that
// share a single answer.
type FAQ struct {
	Questions []string `json:"questions" validate:"required,min=1,dive,required,notblank"`
	Answer    string   `json:"answer" validate:"required,notblank"`
}

// Document is a stored knowledge-base entry. It is immutable once stored.
type Document struct {
	ID        int
	Question  string
	Answer    string
	Embedding []float32
}

// QueryResult pairs a document with its cosine similarity to a query.
type QueryResult struct {
	Document Document
	Score    float64
}

// Decision is the outcome of routing a ranked result list.
// Best is only meaningful when Sufficient is true.
type Decision struct {
	Sufficient bool
	Best       QueryResult
}

// Response is what a caller gets back for a question.
type Response struct {
	Text       string `json:"text"`
	SourceUsed bool   `json:"source_used"`
}

// Revision describes the knowledge base currently served.
type Revision struct {
	ID        string    `json:"id"`
	Documents int       `json:"documents"`
	Groups    int       `json:"groups"`
	LoadedAt  time.Time `json:"loaded_at"`
}
