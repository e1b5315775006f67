package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/answermesh/core"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *SerpAPI) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewSerpAPI("test-key", func(o *SerpAPIOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})
	return srv, client
}

func TestSerpAPISearch(t *testing.T) {
	var gotQuery, gotNum, gotEngine string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		gotEngine = r.URL.Query().Get("engine")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"organic_results": [
				{"position": 1, "title": "Eiffel Tower", "link": "https://example.org/tower", "snippet": "Completed in 1889."},
				{"position": 2, "title": "Paris", "link": "https://example.org/paris", "snippet": "Capital of France."}
			]
		}`))
	})

	results, err := client.Search(context.Background(), "eiffel tower", 5)
	require.NoError(t, err)

	assert.Equal(t, "eiffel tower", gotQuery)
	assert.Equal(t, "5", gotNum)
	assert.Equal(t, "google", gotEngine)

	require.Len(t, results, 2)
	assert.Equal(t, "Eiffel Tower", results[0].Title)
	assert.Equal(t, "https://example.org/tower", results[0].URL)
	assert.Equal(t, "Completed in 1889.", results[0].Snippet)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
}

func TestSerpAPISearchCapsResults(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organic_results": [
			{"position": 1, "title": "a", "link": "u1", "snippet": "s"},
			{"position": 2, "title": "b", "link": "u2", "snippet": "s"},
			{"position": 3, "title": "c", "link": "u3", "snippet": "s"}
		]}`))
	})

	results, err := client.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSerpAPIStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  core.ErrorKind
		transient bool
	}{
		{"unauthorized", http.StatusUnauthorized, core.ErrorKindInvalidKey, false},
		{"forbidden", http.StatusForbidden, core.ErrorKindInvalidKey, false},
		{"rate limited", http.StatusTooManyRequests, core.ErrorKindRateLimited, true},
		{"request timeout", http.StatusRequestTimeout, core.ErrorKindTimeout, true},
		{"server error", http.StatusBadGateway, core.ErrorKindUnavailable, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.Search(context.Background(), "q", 3)
			require.Error(t, err)

			var provErr *core.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, core.ProviderSearch, provErr.Source)
			assert.Equal(t, tt.wantKind, provErr.Kind)
			assert.Equal(t, tt.transient, core.IsTransient(err))
		})
	}
}

func TestSerpAPIBodyError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Invalid API key. Your API key should be here."}`))
	})

	_, err := client.Search(context.Background(), "q", 3)
	require.Error(t, err)

	var provErr *core.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, core.ErrorKindInvalidKey, provErr.Kind)
}

func TestSerpAPIMissingKey(t *testing.T) {
	client := NewSerpAPI("  ")

	_, err := client.Search(context.Background(), "q", 3)
	require.Error(t, err)

	var provErr *core.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, core.ErrorKindInvalidKey, provErr.Kind)
	assert.False(t, core.IsTransient(err))
}

func TestSerpAPICanceledContextPassesThrough(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organic_results": []}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, "q", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var provErr *core.ProviderError
	assert.False(t, core.IsTransient(err))
	assert.NotErrorAs(t, err, &provErr)
}
