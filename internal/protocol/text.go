package protocol

import (
	"strings"
	"unicode/utf8"
)

// PruneInvalidUTF8 drops bytes that are not part of a valid UTF-8 sequence.
func PruneInvalidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// TruncateUTF8 cuts s to at most n bytes and drops a trailing partial rune.
func TruncateUTF8(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return PruneInvalidUTF8(s[:n])
}
