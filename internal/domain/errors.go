package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDimensionMismatch is matched by every DimensionMismatchError.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedMetric is returned when an index is created with a metric other than cosine.
	ErrUnsupportedMetric = errors.New("unsupported similarity metric")

	// ErrConfig marks configuration problems detected at startup.
	ErrConfig = errors.New("configuration error")

	// ErrGeneration wraps failures of the text-generation service.
	ErrGeneration = errors.New("text generation failed")

	// ErrInvalidDataset is matched by every ValidationError.
	ErrInvalidDataset = errors.New("invalid dataset")
)

// DimensionMismatchError reports a vector whose length differs from the
// index dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch, e.Expected, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// ValidationError describes why a dataset was rejected. Fields maps a
// location such as "[2].answer" to a human-readable problem.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidDataset, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s (%s)", ErrInvalidDataset, e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDataset
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
