// Package similarity scores how likely two free-text strings refer to the
// same thing, using locale-aware address normalization followed by token-set
// Jaccard similarity. One scoring path serves every comparison in the
// verification flow; callers differ only in the threshold they apply.
package similarity

import "strings"

// tokenDelimiters split an address into words alongside whitespace.
const tokenDelimiters = ",.;:#/()-"

// Score compares two strings and reports a similarity in [0,1] plus whether
// it meets the supplied threshold. Empty or whitespace-only input scores 0.
// The comparison is symmetric.
func Score(text1, text2 string, threshold float64) (float64, bool) {
	s := compute(text1, text2)
	return s, s >= threshold
}

// Normalize expands region abbreviations, folds case, and trims the string
// the same way Score does before tokenizing.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(expandRegionCodes(text)))
}

func compute(text1, text2 string) float64 {
	if strings.TrimSpace(text1) == "" || strings.TrimSpace(text2) == "" {
		return 0
	}

	a := Normalize(text1)
	b := Normalize(text2)
	if a == b {
		return 1.0
	}

	return jaccard(tokenize(a), tokenize(b))
}

// tokenize splits a normalized string into a set of words, collapsing
// duplicates. Splitting on runes keeps multi-byte input intact.
func tokenize(text string) map[string]bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return true
		}
		return strings.ContainsRune(tokenDelimiters, r)
	})

	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// jaccard returns |intersection| / |union| of two token sets, or 0 when the
// union is empty.
func jaccard(a, b map[string]bool) float64 {
	union := len(a)
	intersection := 0
	for token := range b {
		if a[token] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
