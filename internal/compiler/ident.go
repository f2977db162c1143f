package compiler

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent strips combining marks so accented definition names fold to
// plain ASCII before they become SQL identifiers.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sqlName normalizes a definition name into a safe lower-case SQL
// identifier: accents folded, anything outside [a-z0-9] collapsed to a
// single underscore.
func sqlName(name string) string {
	folded, _, err := transform.String(deaccent, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	lastUnderscore := true // also trims leading underscores
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// quoteLiteral renders a string as a single-quoted SQL literal with
// embedded quotes doubled.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
