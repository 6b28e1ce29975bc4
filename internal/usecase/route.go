package usecase

import "nutriguide/internal/domain"

// Decide routes a ranked result list. Only the top result is considered and
// the threshold is inclusive.
func Decide(results []domain.QueryResult, threshold float64) domain.Decision {
	if len(results) == 0 {
		return domain.Decision{}
	}
	if results[0].Score >= threshold {
		return domain.Decision{Sufficient: true, Best: results[0]}
	}
	return domain.Decision{}
}
