package metadata

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// titleSimilarity scores how close two titles are, 0.0 to 1.0.
// Exact match wins; a substring match is scaled by 0.8 and by the length
// ratio; otherwise the word-set overlap decides.
func titleSimilarity(query, candidate string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == c {
		return 1.0
	}
	if strings.Contains(c, q) || strings.Contains(q, c) {
		lq := float64(utf8.RuneCountInString(q))
		lc := float64(utf8.RuneCountInString(c))
		return 0.8 * min(lq, lc) / max(lq, lc)
	}
	qWords := wordSet(q)
	cWords := wordSet(c)
	if len(qWords) == 0 || len(cWords) == 0 {
		return 0.0
	}
	overlap := 0
	for w := range qWords {
		if _, ok := cWords[w]; ok {
			overlap++
		}
	}
	return float64(overlap) / max(float64(len(qWords)), float64(len(cWords)))
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

// bestMatch picks the candidate whose primary or original-language name best
// matches the query. Ties keep input order.
func bestMatch[T any](query string, results []T, name, origName func(T) string) T {
	if len(results) == 1 {
		return results[0]
	}
	scored := make([]struct {
		score  float64
		result T
	}, 0, len(results))
	for _, r := range results {
		score := max(titleSimilarity(query, name(r)), titleSimilarity(query, origName(r)))
		scored = append(scored, struct {
			score  float64
			result T
		}{score, r})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored[0].result
}
