// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package features turns raw article text into sparse term-weight
// vectors and derives the inverted search index from them.
//
// Normalization (diacritic stripping, case folding, whitespace
// collapsing, tokenization) is a pure per-document function. The
// TF-IDF weighting is corpus-wide: a term's weight in one document
// depends on its document frequency across the whole corpus, so
// vectorization happens in one batch over all items.
package features

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nonWord matches everything that is not a lowercase word character.
// Apostrophes and hyphens survive so "don't" and "state-of-the-art"
// stay single tokens.
var nonWord = regexp.MustCompile(`[^a-z0-9'\-]+`)

// whitespace matches runs of whitespace for collapsing.
var whitespace = regexp.MustCompile(`\s+`)

// deaccent strips combining marks after canonical decomposition,
// turning "protégé" into "protege".
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases the text, strips diacritics, replaces
// everything outside [a-z0-9'-] with spaces and collapses whitespace.
// This is the shared contract between indexing and query processing:
// both sides must normalize identically or index lookups miss.
func Normalize(s string) string {
	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = nonWord.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// NormWhitespace collapses runs of whitespace to single spaces and
// trims the ends. Used for display fields (title, authors, URLs)
// where case and punctuation must survive.
func NormWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Tokenize normalizes the text and splits it into terms.
func Tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}
