package prompt

import (
	"fmt"
	"strings"

	"github.com/hupe1980/answermesh/core"
)

// RenderEvidence formats search results as a numbered block for inclusion in
// drafting instructions and the verification template. Result order is
// preserved.
func RenderEvidence(results []core.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&b, " (%s)", r.URL)
		}
		if r.Snippet != "" {
			b.WriteString("\n")
			b.WriteString(r.Snippet)
		}
	}
	return b.String()
}
