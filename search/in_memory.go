package search

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/answermesh/core"
)

// InMemoryClient is a naive process-local SearchClient backed by a seeded
// document list. Matching is a case-insensitive substring scan assigning a
// constant score of 1.0 to every hit. Suitable only for tests and demos; swap
// for a real provider in production.
type InMemoryClient struct {
	mu   sync.RWMutex
	docs []core.SearchResult
}

// NewInMemoryClient creates an empty in-memory search client.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{}
}

// Add seeds a document. Title and snippet both participate in matching.
func (c *InMemoryClient) Add(title, url, snippet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, core.SearchResult{Title: title, URL: url, Snippet: snippet, Score: 1.0})
}

// Search scans the seeded documents in insertion order up to limit. An empty
// query matches everything.
func (c *InMemoryClient) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultResultLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	needle := strings.ToLower(query)
	results := make([]core.SearchResult, 0, limit)
	for _, doc := range c.docs {
		if len(results) >= limit {
			break
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(doc.Title), needle) ||
			strings.Contains(strings.ToLower(doc.Snippet), needle) {
			results = append(results, doc)
		}
	}
	return results, nil
}

var _ core.SearchClient = (*InMemoryClient)(nil)
