package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SingleLine converts text to NFC and collapses every run of whitespace,
// including newlines, into a single space.
func SingleLine(value string) string {
	value = norm.NFC.String(value)
	var b strings.Builder
	b.Grow(len(value))
	space := false
	for _, r := range value {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate returns at most limit runes of value. A non-positive limit
// returns value unchanged.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	count := 0
	for idx := range value {
		if count == limit {
			return value[:idx]
		}
		count++
	}
	return value
}

// Preview returns the single-line form of value cut to limit runes.
func Preview(value string, limit int) string {
	return Truncate(SingleLine(value), limit)
}
