// Package textnorm provides text normalization for case- and
// accent-insensitive matching. Normalization is used anywhere the core
// compares user text: query matching, suggestion lookup, and chunk
// searchable text.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// folder decomposes to NFD, drops combining marks, and recomposes.
// This maps á→a, ř→r, ü→u and leaves characters without a canonical
// decomposition untouched.
var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold removes diacritics where a canonical decomposition exists.
func Fold(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize folds diacritics, lowercases, collapses whitespace runs to a
// single space, and trims. It is idempotent and deterministic.
func Normalize(s string) string {
	s = strings.ToLower(Fold(s))
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits text on whitespace and punctuation boundaries and
// drops empty tokens. Hyphens and dots inside a token are kept so that
// identifiers like "INV-2024" and file names survive tokenization.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		if r == '-' || r == '.' || r == '@' {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

// TokenSet returns the normalized tokens of s as a set.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(Normalize(s)) {
		set[tok] = struct{}{}
	}
	return set
}

// ContainsPhrase reports whether the phrase appears in the text on
// whole-token boundaries. Single-word phrases also match hyphenated
// token parts. Both inputs are expected to be normalized already.
func ContainsPhrase(text, phrase string) bool {
	if text == "" || phrase == "" {
		return false
	}
	if !strings.Contains(phrase, " ") {
		return ContainsToken(text, phrase)
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// ContainsToken reports whether needle appears in haystack as a whole
// token or as a hyphenated part of one. Both inputs are expected to be
// normalized already.
func ContainsToken(haystack, needle string) bool {
	for _, tok := range Tokenize(haystack) {
		if tok == needle {
			return true
		}
		for _, part := range strings.Split(tok, "-") {
			if part == needle {
				return true
			}
		}
	}
	return false
}
