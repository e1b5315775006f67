// Package search provides search client implementations for evidence
// retrieval.
//
// Available clients:
//
//   - SerpAPI: Google results via serpapi.com, requires an API key
//   - InMemoryClient: process-local keyword index for tests and demos
//
// Custom backends implement the core.SearchClient interface:
//
//	type SearchClient interface {
//	    Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error)
//	}
package search
