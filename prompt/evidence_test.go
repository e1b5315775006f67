package prompt

import (
	"strings"
	"testing"

	"github.com/hupe1980/answermesh/core"
)

func TestRenderEvidence(t *testing.T) {
	results := []core.SearchResult{
		{Title: "Go spec", URL: "https://go.dev/ref/spec", Snippet: "The reference."},
		{Title: "Effective Go", URL: "https://go.dev/doc/effective_go"},
	}
	out := RenderEvidence(results)

	if !strings.Contains(out, "[1] Go spec (https://go.dev/ref/spec)") {
		t.Errorf("missing first entry: %q", out)
	}
	if !strings.Contains(out, "The reference.") {
		t.Errorf("missing snippet: %q", out)
	}
	if !strings.Contains(out, "[2] Effective Go") {
		t.Errorf("missing second entry: %q", out)
	}
	if strings.Index(out, "[1]") > strings.Index(out, "[2]") {
		t.Error("result order should be preserved")
	}
}

func TestRenderEvidence_Empty(t *testing.T) {
	if out := RenderEvidence(nil); out != "" {
		t.Errorf("expected empty block, got %q", out)
	}
}
