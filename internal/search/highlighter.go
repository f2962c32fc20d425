package search

import (
	"strings"
	"unicode"
)

// Snippet returns a window of text up to maxLen centered on the first
// occurrence of a query term. When no term matches, the head of the text is
// returned. The cut falls on rune boundaries.
func Snippet(text, query string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	pos := firstTermIndex(text, query)
	if pos < 0 {
		pos = 0
	}
	start := pos - maxLen/2
	if start < 0 {
		start = 0
	}
	runes := []rune(text)
	// Recompute in runes so multi-byte text is not split mid-character.
	startRune := len([]rune(text[:start]))
	endRune := startRune + maxLen
	if endRune > len(runes) {
		endRune = len(runes)
		startRune = endRune - maxLen
		if startRune < 0 {
			startRune = 0
		}
	}

	out := string(runes[startRune:endRune])
	if startRune > 0 {
		out = "..." + out
	}
	if endRune < len(runes) {
		out += "..."
	}
	return out
}

// firstTermIndex finds the byte offset of the earliest query term in text,
// case-insensitively. Returns -1 when no term occurs.
func firstTermIndex(text, query string) int {
	lower := strings.ToLower(text)
	best := -1
	for _, term := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if i := strings.Index(lower, term); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}
