package helpers

import (
	"strings"

	"github.com/xrash/smetrics"
)

func normalizeForSimilarity(s string) string {
	return strings.TrimSpace(strings.ToLower(StripColors(s)))
}

// Similarity of two messages, from 0 (nothing in common) to 1 (identical).
//
// Computed as one minus the Levenshtein distance divided by the length of the longer string, after stripping colors and case.
func Similarity(a, b string) float64 {
	a = normalizeForSimilarity(a)
	b = normalizeForSimilarity(b)
	if a == b {
		return 1
	}
	longer, shorter := a, b
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	if len(longer) == 0 {
		return 1
	}
	dist := smetrics.WagnerFischer(longer, shorter, 1, 1, 1)
	return float64(len(longer)-dist) / float64(len(longer))
}
