// Package textnorm normalizes free text coming from government sources:
// accent folding, casing and whitespace.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold removes diacritics ("Bucaramanga, Málaga" -> "Bucaramanga, Malaga").
// Ñ folds to N, matching how the open-data sources spell names.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Squash trims and collapses internal whitespace runs to one space.
func Squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Name is the canonical form of a place name: folded, upper-cased, squashed.
// The literal "NAN" left behind by spreadsheet exports is treated as empty.
func Name(s string) (string, bool) {
	v := strings.ToUpper(Squash(Fold(s)))
	if v == "" || v == "NAN" || v == "NONE" {
		return "", false
	}
	return v, true
}

// Category is the canonical form of a categorical label: upper-cased and
// squashed, accents kept ("DELITOS INFORMÁTICOS" stays as is).
func Category(s string) (string, bool) {
	v := strings.ToUpper(Squash(s))
	if v == "" || v == "NAN" || v == "NONE" {
		return "", false
	}
	return v, true
}
