package strings

import (
	"strings"
)

// DefaultNameMaxLen is the width account and school names are cut to in
// table output.
const DefaultNameMaxLen = 32

// MinTruncateLen is the smallest useful maxLen: one character plus "...".
const MinTruncateLen = 4

// Truncate collapses whitespace in s to single spaces and cuts the result to
// maxLen runes, ending in "..." when something was cut. maxLen is raised to
// MinTruncateLen if smaller.
func Truncate(s string, maxLen int) string {
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

// ShortID returns the first block of a UUID, which is enough to tell
// sessions apart in a listing.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
