package util

import "strings"

// FillPlaceholders substitutes literal {name} placeholders in text with the
// given values. Unknown placeholders are left untouched so malformed
// templates stay visible instead of silently vanishing.
// This lives in internal to avoid committing to public API stability prematurely.
func FillPlaceholders(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
