package prompt

// TokenCounter reports the token cost of a text. Implementations must be
// deterministic and side-effect free; assembly calls them repeatedly while
// trimming.
type TokenCounter func(text string) int

// EstimateTokens is the default counter: a byte-length heuristic of roughly
// four bytes per token. It overestimates dense unicode text, which errs on
// the safe side of a provider limit.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
