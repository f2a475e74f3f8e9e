package db

import "github.com/kailas-cloud/rendezvous/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search. Entries keep the store's native order.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// StreamEntry is one record of an append-only stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}
