package schema_test

import (
	"testing"

	"github.com/huangsam/ers/schema"
	"github.com/stretchr/testify/assert"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		expected string
	}{
		{"Excellent Score Upper", 100, "Excellent"},
		{"Excellent Score Lower", 80, "Excellent"},
		{"Good Score Upper", 79, "Good"},
		{"Good Score Lower", 60, "Good"},
		{"Fair Score Upper", 59, "Fair"},
		{"Fair Score Lower", 40, "Fair"},
		{"Poor Score Upper", 39, "Poor"},
		{"Poor Score Lower", 0, "Poor"},
		{"Negative Score", -10, "Poor"}, // Edge case
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.GetPlainLabel(tt.score)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEnrichScore(t *testing.T) {
	enriched := schema.EnrichScore(schema.ScoreResult{SubjectID: "p1", OverallScore: 65})
	assert.Equal(t, "Good", enriched.Label)
	assert.Equal(t, "p1", enriched.SubjectID)
}

func TestEnrichExplanation(t *testing.T) {
	result := schema.ScoreResult{
		OverallScore: 60,
		Explanation: map[string]schema.ExplanationEntry{
			"fair_wages": {Raw: true, Normalized: 1, Weight: 1, Contribution: 1},
			"durability": {Raw: 2, Normalized: 0.2, Weight: 1, Contribution: 0.2},
			"stale_key":  {Raw: 5, Normalized: 0.5, Weight: 0, Contribution: 0},
		},
	}
	defs := map[string]schema.MetricDefinition{
		"fair_wages": {Key: "fair_wages", Label: "Pays fair wages", Kind: schema.BooleanKind},
		"durability": {Key: "durability", Label: "Durability (0-10)", Kind: schema.Bounded0to10Kind},
	}

	rows := schema.EnrichExplanation(result, defs)

	assert.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "fair_wages", rows[0].Key)
	assert.Equal(t, "Pays fair wages", rows[0].Label)
	assert.Equal(t, schema.BooleanKind, rows[0].Kind)
	assert.InDelta(t, 50.0, rows[0].Points, 1e-9)

	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, "durability", rows[1].Key)
	assert.InDelta(t, 10.0, rows[1].Points, 1e-9)

	assert.Equal(t, 3, rows[2].Rank)
	assert.Equal(t, "stale_key", rows[2].Label)
	assert.Empty(t, rows[2].Kind)
}
