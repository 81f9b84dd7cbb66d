// Package matcher implements the composite 0-100 scoring and
// auto_tag/needs_review/skip decision over MusicBrainz release
// candidates, grounded on the similarity/normalize/tokenize helpers in
// AlexFalzone-ytmusic's metadata resolver, generalized from a single
// title/artist blend into the full per-signal table spec.md §4.5
// describes.
package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, strips accents (NFKD decompose + strip
// combining marks) and removes punctuation, leaving letters/digits/
// spaces only.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(decomposed) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokenize splits a normalized string into words.
func Tokenize(s string) []string {
	return strings.Fields(s)
}

// Jaccard returns the Jaccard similarity (|intersection| / |union|) of
// the word-sets of two normalized strings.
func Jaccard(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	setA := map[string]bool{}
	for _, t := range ta {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range tb {
		setB[t] = true
	}

	inter := 0
	union := map[string]bool{}
	for t := range setA {
		union[t] = true
		if setB[t] {
			inter++
		}
	}
	for t := range setB {
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

var (
	discIndicatorRe = regexp.MustCompile(`(?i)\b(disc|cd)\s*\d+\b`)
	editionSuffixRe = regexp.MustCompile(`(?i)\s*[-:]\s*(deluxe|remaster(ed)?|anniversary|expanded|special)\s*(edition)?\s*$`)
	bracketRe       = regexp.MustCompile(`[\(\[][^\)\]]*[\)\]]`)
)

// CleanAlbum strips disc indicators and edition suffixes, the second
// query variant in spec.md §4.5.
func CleanAlbum(album string) string {
	s := discIndicatorRe.ReplaceAllString(album, "")
	s = editionSuffixRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// StripBrackets removes all parenthesized/bracketed content, the third
// query variant in spec.md §4.5.
func StripBrackets(album string) string {
	return strings.TrimSpace(bracketRe.ReplaceAllString(album, ""))
}

// QueryVariants returns the three query variants in decreasing
// specificity order, de-duplicated.
func QueryVariants(album string) []string {
	variants := []string{album}
	if cleaned := CleanAlbum(album); cleaned != album && cleaned != "" {
		variants = append(variants, cleaned)
	}
	if stripped := StripBrackets(album); stripped != album && stripped != "" {
		dup := false
		for _, v := range variants {
			if v == stripped {
				dup = true
			}
		}
		if !dup {
			variants = append(variants, stripped)
		}
	}
	return variants
}
