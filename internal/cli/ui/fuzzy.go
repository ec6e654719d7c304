package ui

import (
	"slices"
	"strings"

	"github.com/agext/levenshtein"
)

// MaxSuggestionDistance is the largest edit distance offered as a suggestion.
const MaxSuggestionDistance = 3

// FindSimilar returns up to limit candidates within MaxSuggestionDistance
// edits of target, closest first. Comparison ignores case.
func FindSimilar(target string, candidates []string, limit int) []string {
	if limit <= 0 {
		limit = 3
	}

	type match struct {
		value    string
		distance int
	}

	target = strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		if d := Distance(target, strings.ToLower(c)); d <= MaxSuggestionDistance {
			matches = append(matches, match{c, d})
		}
	}

	slices.SortStableFunc(matches, func(a, b match) int { return a.distance - b.distance })

	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches[:min(limit, len(matches))] {
		out = append(out, m.value)
	}
	return out
}

// Distance is the Levenshtein distance between a and b.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}
