// Package search holds the read side of ranking: scored candidates and their filters.
package search

// Candidate is one ranked user. Score is cosine similarity, higher is closer.
type Candidate struct {
	UserID string
	Score  float64
	Labels []string
}
