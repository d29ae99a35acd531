package schema

// EnrichedScoreResult adds presentation data to a ScoreResult.
type EnrichedScoreResult struct {
	Label string `json:"label"`
	ScoreResult
}

// ExplanationRow is one ranked line of a score explanation.
type ExplanationRow struct {
	Rank   int        `json:"rank"`
	Key    string     `json:"key"`
	Label  string     `json:"label"`
	Kind   MetricKind `json:"kind"`
	Points float64    `json:"points"` // share of the overall score contributed by this metric
	ExplanationEntry
}

// GetPlainLabel returns a plain text label for an overall score.
func GetPlainLabel(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}

// EnrichScore adds the label to a score result.
func EnrichScore(r ScoreResult) EnrichedScoreResult {
	return EnrichedScoreResult{Label: GetPlainLabel(r.OverallScore), ScoreResult: r}
}

// EnrichExplanation ranks explanation entries by contribution.
// Labels and kinds come from defs when present; otherwise the key is used.
func EnrichExplanation(r ScoreResult, defs map[string]MetricDefinition) []ExplanationRow {
	keys := r.TopContributors(-1)
	total := r.TotalWeight()
	rows := make([]ExplanationRow, len(keys))
	for i, k := range keys {
		e := r.Explanation[k]
		row := ExplanationRow{Rank: i + 1, Key: k, Label: k, ExplanationEntry: e}
		if d, ok := defs[k]; ok {
			row.Label = d.Label
			row.Kind = d.Kind
		}
		if total > 0 {
			row.Points = 100 * e.Contribution / total
		}
		rows[i] = row
	}
	return rows
}
