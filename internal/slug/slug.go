// Package slug derives URL-friendly post identifiers from titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// whitespace matches ASCII and Unicode spaces, including NBSP and the
	// line/paragraph separators.
	whitespace = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	// nonWord matches anything outside [A-Za-z0-9_-].
	nonWord = regexp.MustCompile(`[^\w-]+`)
)

// Generate lowercases s, turns whitespace runs into hyphens and strips every
// character that is not a word character or hyphen. Accented letters are
// folded to their base letter first.
// Example: "Café Culture in 2026!" → "cafe-culture-in-2026"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(fold(s)))
	result = whitespace.ReplaceAllString(result, "-")
	return nonWord.ReplaceAllString(result, "")
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
