package core

import (
	"sort"

	"github.com/huangsam/ers/schema"
)

// rankScores sorts results by overall score in descending order and returns
// the top 'limit' results. Ties are broken by subject id so ranking is stable.
// A limit of zero or less returns every result.
func rankScores(results []schema.ScoreResult, limit int) []schema.ScoreResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].OverallScore != results[j].OverallScore {
			return results[i].OverallScore > results[j].OverallScore
		}
		return results[i].SubjectID < results[j].SubjectID
	})
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
