package strings

import (
	"strings"
)

// MinTruncateLen is the smallest maxLen TruncateDescription honors.
// Anything shorter leaves no room for a character plus "...".
const MinTruncateLen = 4

// TruncateDescription flattens s to a single line and truncates it to
// maxLen characters, appending "..." when anything was cut. Whitespace
// runs, newlines included, collapse to single spaces. Truncation counts
// runes, not bytes, so multi-byte characters are never split. A maxLen
// below MinTruncateLen is clamped to it.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
