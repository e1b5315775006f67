package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/answermesh/core"
)

// DefaultResultLimit caps results when the caller passes a non-positive limit.
const DefaultResultLimit = 5

const serpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPIOptions configures the SerpAPI client.
type SerpAPIOptions struct {
	// Engine selects the SerpAPI engine parameter. Defaults to "google".
	Engine string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// HTTPClient overrides the default client and its 10 s timeout.
	HTTPClient *http.Client
}

// SerpAPI retrieves web results from serpapi.com. It performs exactly one
// request per Search call; retry decisions belong to the caller, which can
// inspect the returned *core.ProviderError kind.
type SerpAPI struct {
	apiKey string
	opts   SerpAPIOptions
}

// NewSerpAPI constructs a SerpAPI client.
func NewSerpAPI(apiKey string, optFns ...func(o *SerpAPIOptions)) *SerpAPI {
	opts := SerpAPIOptions{
		Engine:     "google",
		BaseURL:    serpAPIEndpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SerpAPI{apiKey: apiKey, opts: opts}
}

// Search executes one SerpAPI query and maps the organic results.
func (s *SerpAPI) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, core.NewSearchError(core.ErrorKindInvalidKey, errors.New("serpapi: API key is missing"))
	}
	if limit <= 0 {
		limit = DefaultResultLimit
	}

	params := url.Values{}
	params.Set("engine", s.opts.Engine)
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatusError(resp.StatusCode)
	}

	var payload struct {
		Error          string `json:"error"`
		OrganicResults []struct {
			Position int    `json:"position"`
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, core.NewSearchError(core.ErrorKindUnavailable, fmt.Errorf("serpapi: decode response: %w", err))
	}
	// SerpAPI reports some failures inside a 200 body.
	if payload.Error != "" {
		kind := core.ErrorKindUnavailable
		if strings.Contains(strings.ToLower(payload.Error), "api key") {
			kind = core.ErrorKindInvalidKey
		}
		return nil, core.NewSearchError(kind, fmt.Errorf("serpapi: %s", payload.Error))
	}

	results := make([]core.SearchResult, 0, limit)
	for _, r := range payload.OrganicResults {
		score := 0.0
		if r.Position > 0 {
			score = 1 / float64(r.Position)
		}
		results = append(results, core.SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Score: score})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// mapTransportError classifies request-level failures. Caller cancellation
// passes through untouched so it is never mistaken for a provider fault.
func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewSearchError(core.ErrorKindTimeout, err)
	}
	return core.NewSearchError(core.ErrorKindUnavailable, err)
}

func mapStatusError(status int) error {
	err := fmt.Errorf("serpapi http %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.NewSearchError(core.ErrorKindInvalidKey, err)
	case status == http.StatusTooManyRequests:
		return core.NewSearchError(core.ErrorKindRateLimited, err)
	case status == http.StatusRequestTimeout:
		return core.NewSearchError(core.ErrorKindTimeout, err)
	case status >= 500:
		return core.NewSearchError(core.ErrorKindUnavailable, err)
	default:
		return core.NewSearchError(core.ErrorKindUnavailable, err)
	}
}

var _ core.SearchClient = (*SerpAPI)(nil)
