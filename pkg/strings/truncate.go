package strings

import (
	"strings"
)

// DefaultCellMaxLen is the widest free text cell printed in result tables.
const DefaultCellMaxLen = 60

// MinTruncateLen leaves room for one character plus "...".
const MinTruncateLen = 4

// SingleLine collapses all whitespace runs in s, including newlines and the
// CRLF endings DAPLink writes, into single spaces and cuts the result to
// maxLen runes with a trailing "...".
//
// maxLen below MinTruncateLen is raised to MinTruncateLen.
func SingleLine(s string, maxLen int) string {
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
