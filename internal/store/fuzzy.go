package store

import "github.com/skein-labs/skein/backend/pkg/common"

// ExpansionRow is one cached expansion of a source node.
type ExpansionRow struct {
	ID         int64
	ContextIDs []int64
	TargetIDs  []int64
}

// BestFuzzyMatch picks the stored expansion whose context is most
// similar to the query context, requiring Jaccard similarity at or
// above threshold. Ties keep the first row encountered, so with rows
// ordered by id the match is stable across calls.
func BestFuzzyMatch(rows []ExpansionRow, contextIDs []int64, threshold float64) (ExpansionRow, bool) {
	var (
		best      ExpansionRow
		bestScore = -1.0
		found     bool
	)
	for _, row := range rows {
		score := common.Jaccard(row.ContextIDs, contextIDs)
		if score < threshold {
			continue
		}
		if score > bestScore {
			best = row
			bestScore = score
			found = true
		}
	}
	return best, found
}
