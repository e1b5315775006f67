package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededClient() *InMemoryClient {
	c := NewInMemoryClient()
	c.Add("Eiffel Tower", "https://example.org/tower", "Wrought-iron lattice tower completed in 1889.")
	c.Add("Louvre", "https://example.org/louvre", "Art museum in Paris.")
	c.Add("Paris", "https://example.org/paris", "Capital of France, home of the Eiffel Tower.")
	return c
}

func TestInMemoryClientSearch(t *testing.T) {
	t.Parallel()

	c := seededClient()

	results, err := c.Search(context.Background(), "eiffel", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Eiffel Tower", results[0].Title)
	assert.Equal(t, "Paris", results[1].Title)
}

func TestInMemoryClientCaseInsensitive(t *testing.T) {
	t.Parallel()

	c := seededClient()

	results, err := c.Search(context.Background(), "LOUVRE", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Louvre", results[0].Title)
}

func TestInMemoryClientLimit(t *testing.T) {
	t.Parallel()

	c := seededClient()

	results, err := c.Search(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestInMemoryClientNoMatch(t *testing.T) {
	t.Parallel()

	c := seededClient()

	results, err := c.Search(context.Background(), "zeppelin", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInMemoryClientCanceledContext(t *testing.T) {
	t.Parallel()

	c := seededClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, "paris", 10)
	assert.ErrorIs(t, err, context.Canceled)
}
