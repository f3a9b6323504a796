// Package textnorm folds Turkish place names into a canonical lowercase form
// so names from independently curated sources compare equal.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold maps letters that survive diacritic removal to their ASCII form.
var asciiFold = strings.NewReplacer("ı", "i")

// Key trims s, collapses internal whitespace, lowercases it with Turkish
// casing rules and removes diacritics, so "İSTANBUL", "Istanbul" and
// "istanbul" share one key, as do "IŞIK" and "isik".
func Key(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	// Turkish casing maps I to ı and İ to i.
	s = cases.Lower(language.Turkish).String(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return asciiFold.Replace(folded)
}

// Equal reports whether a and b share a key.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
