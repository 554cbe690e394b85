package tui

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// rankIterations orders paths by how well they match query. Substring
// matches come first, then near misses on the leaf name by edit distance.
// Paths too far from the query are dropped. An empty query keeps paths as is.
func rankIterations(paths []string, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]string(nil), paths...)
	}
	type scored struct {
		path  string
		score int
		index int
	}
	limit := len([]rune(q))/2 + 1
	var hits []scored
	for i, p := range paths {
		lp := strings.ToLower(p)
		if strings.Contains(lp, q) {
			hits = append(hits, scored{p, 0, i})
			continue
		}
		d := levenshtein.ComputeDistance(q, strings.ToLower(leaf(p)))
		if d <= limit {
			hits = append(hits, scored{p, d, i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score < hits[j].score
		}
		return hits[i].index < hits[j].index
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.path
	}
	return out
}

func leaf(path string) string {
	if i := strings.LastIndex(path, `\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
