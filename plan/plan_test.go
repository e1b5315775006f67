package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarkers_SearchRequested(t *testing.T) {
	raw := "The question needs current data. [PLAN] check release notes [SEARCH_PLAN] go 1.24 release date"
	d := ParseMarkers(raw, DefaultMarkers())

	assert.True(t, d.SearchNeeded)
	assert.Equal(t, "go 1.24 release date", d.Query)
	assert.Equal(t, "check release notes", d.Plan)
	assert.Zero(t, d.ExtraMarkers)
}

func TestParseMarkers_NoMarkerMeansNoSearch(t *testing.T) {
	d := ParseMarkers("I can answer that from context alone.", DefaultMarkers())
	assert.False(t, d.SearchNeeded)
	assert.Empty(t, d.Query)
}

func TestParseMarkers_EmptyPayloadIsInvalid(t *testing.T) {
	d := ParseMarkers("maybe search? [SEARCH_PLAN]   ", DefaultMarkers())
	assert.False(t, d.SearchNeeded)
	assert.Empty(t, d.Query)
}

func TestParseMarkers_FirstOccurrenceWins(t *testing.T) {
	raw := "x [SEARCH_PLAN] first query [SEARCH_PLAN] second query"
	d := ParseMarkers(raw, DefaultMarkers())

	assert.True(t, d.SearchNeeded)
	assert.Equal(t, "first query", d.Query)
	assert.Equal(t, 1, d.ExtraMarkers)
}

func TestParseMarkers_PayloadStopsAtNextTag(t *testing.T) {
	raw := "x [SEARCH_PLAN] the query [PLAN] afterthought"
	d := ParseMarkers(raw, DefaultMarkers())

	assert.Equal(t, "the query", d.Query)
	assert.Equal(t, "afterthought", d.Plan)
}

func TestParseMarkers_TotalOverGarbage(t *testing.T) {
	inputs := []string{"", "]][[", "[SEARCH_PLAN", "PLAN] [SEARCH_PLAN]", "\x00\xff"}
	for _, raw := range inputs {
		d := ParseMarkers(raw, DefaultMarkers())
		assert.False(t, d.SearchNeeded, "input %q", raw)
	}
}

func TestParseMarkers_Idempotent(t *testing.T) {
	raw := "a [PLAN] p [SEARCH_PLAN] q"
	first := ParseMarkers(raw, DefaultMarkers())
	second := ParseMarkers(raw, DefaultMarkers())
	assert.Equal(t, first, second)
}
