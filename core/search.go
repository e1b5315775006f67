package core

import "context"

// SearchResult is one retrieved web document with an optional provider
// relevance score.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// SearchClient retrieves external evidence for a query. Implementations
// return at most limit results, classify failures as *ProviderError with
// Source ProviderSearch, and never retry internally.
type SearchClient interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
