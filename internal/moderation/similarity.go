package moderation

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultSimilarityThreshold is the normalized similarity above which a new
// message counts as a duplicate of a recent one.
const DefaultSimilarityThreshold = 0.8

// Similarity returns the normalized edit-distance similarity of two strings:
// 1 - levenshtein(a,b) / max(len(a), len(b)), in runes. It is symmetric,
// returns 1 for identical strings, and 0 when the strings share nothing.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max)
}
