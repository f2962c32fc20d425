// Package utils provides shared utilities for text and logging.
package utils

import (
	"regexp"
	"strings"
)

// tagRe matches tag-like substrings such as <b>, </i>, <br/>.
var tagRe = regexp.MustCompile(`<[^>]*>`)

// entityReplacer decodes the named HTML entities that appear in commentary
// sources. Applied after tag stripping so decoded angle brackets are not
// re-interpreted as markup.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// Sanitize strips tag-like substrings, decodes a fixed set of named HTML
// entities, and trims surrounding whitespace. No other normalization is done.
// Decoding can surface new markup (entity-encoded tags, double-encoded
// entities), so strip and decode repeat until the text stops changing.
// Each pass shortens the string or leaves it alone, so the loop terminates.
// Sanitizing already-sanitized text is a no-op.
func Sanitize(s string) string {
	for {
		next := entityReplacer.Replace(tagRe.ReplaceAllString(s, ""))
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
