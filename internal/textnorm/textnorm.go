// Package textnorm canonicalizes raw transcript text for matching.
//
// Every comparison in the matching engine — fuzzy similarity, keyword
// containment, concept detection, and span embedding — operates on the
// normalized form produced by [Normalize]. Keeping a single normalization
// path guarantees that an utterance and a candidate that differ only in
// case, accents, punctuation, or spacing compare as equal.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes text for comparison. Rules, applied in order:
//
//  1. Empty input returns the empty string.
//  2. Lowercase.
//  3. Strip diacritics via NFD canonical decomposition, dropping all
//     combining marks (é → e, ç → c).
//  4. Replace every rune that is not a letter, digit, or whitespace with a
//     single space.
//  5. Collapse whitespace runs to a single space and trim.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
// It never fails and always returns a string, possibly empty.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)

	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Combining mark left over from decomposition — drop it.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the whitespace-separated words of the normalized form of
// text. Returns nil for input that normalizes to the empty string.
func Tokens(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}
