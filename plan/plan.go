// Package plan decides whether a turn needs external search and extracts the
// search query from raw model output via configured suffix markers.
package plan

import (
	"strings"
)

// Markers holds the delimiter tags the model is instructed to append to its
// plan output.
type Markers struct {
	// Plan tags the model's free-form approach note.
	Plan string
	// Search tags the search query. Its presence with a non-empty payload
	// requests a search.
	Search string
}

// DefaultMarkers returns the standard tag pair.
func DefaultMarkers() Markers {
	return Markers{Plan: "[PLAN]", Search: "[SEARCH_PLAN]"}
}

// Decision is the planner's outcome for one turn.
type Decision struct {
	// SearchNeeded reports whether a search precedes drafting.
	SearchNeeded bool
	// Query is the search query when SearchNeeded.
	Query string
	// Plan carries the plan marker payload, informational only.
	Plan string
	// Raw is the unparsed model output a chat decision came from.
	Raw string
	// ExtraMarkers counts ignored repeat occurrences, for warning logs.
	ExtraMarkers int
}

// ParseMarkers splits raw model output on the marker tags. It is total over
// arbitrary input and idempotent:
//   - no search tag, or a search tag with an empty payload, means no search
//   - the first occurrence of each tag wins; repeats are counted in
//     ExtraMarkers so the caller can log a warning
//   - payloads run to the next tag occurrence or end of output, trimmed.
func ParseMarkers(raw string, m Markers) Decision {
	d := Decision{Raw: raw}

	if m.Search != "" {
		parts := strings.Split(raw, m.Search)
		if len(parts) > 1 {
			d.ExtraMarkers += len(parts) - 2
			payload := parts[1]
			if m.Plan != "" {
				if i := strings.Index(payload, m.Plan); i >= 0 {
					payload = payload[:i]
				}
			}
			payload = strings.TrimSpace(payload)
			if payload != "" {
				d.SearchNeeded = true
				d.Query = payload
			}
		}
	}

	if m.Plan != "" {
		parts := strings.Split(raw, m.Plan)
		if len(parts) > 1 {
			d.ExtraMarkers += len(parts) - 2
			payload := parts[1]
			if m.Search != "" {
				if i := strings.Index(payload, m.Search); i >= 0 {
					payload = payload[:i]
				}
			}
			d.Plan = strings.TrimSpace(payload)
		}
	}

	return d
}
