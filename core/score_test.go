package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/huangsam/ers/schema"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(DefaultCatalog(), DefaultWeightTable(), WithClock(fixedClock))
}

func TestComputeScoreEmpty(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name    string
		subject schema.ScoringSubject
	}{
		{"no chosen metrics", schema.ScoringSubject{ID: "s"}},
		{"chosen but not reported", schema.ScoringSubject{ID: "s", ChosenMetrics: []string{MetricFairWages}}},
		{"reported but not chosen", schema.ScoringSubject{ID: "s", Metrics: map[string]any{MetricFairWages: true}}},
		{"chosen with nil value", schema.ScoringSubject{ID: "s", ChosenMetrics: []string{MetricFairWages}, Metrics: map[string]any{MetricFairWages: nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.ComputeScore(tt.subject)
			assert.Equal(t, 0, r.OverallScore)
			assert.Empty(t, r.Explanation)
			assert.NotNil(t, r.Explanation)
			assert.Equal(t, fixedNow, r.ComputedAt)
		})
	}
}

func TestComputeScoreWeighted(t *testing.T) {
	e := testEngine(t)
	s := schema.ScoringSubject{
		ID:            "shop",
		Categories:    []string{"food"},
		ChosenMetrics: []string{MetricLocalSourcing, MetricFairWages},
		Metrics: map[string]any{
			MetricLocalSourcing: 100.0, // weight 1.5
			MetricFairWages:     false, // weight 1
		},
	}
	r := e.ComputeScore(s)

	// 100 * 1.5 / 2.5
	assert.Equal(t, 60, r.OverallScore)
	require.Len(t, r.Explanation, 2)

	ls := r.Explanation[MetricLocalSourcing]
	assert.InDelta(t, 1.0, ls.Normalized, 1e-9)
	assert.InDelta(t, 1.5, ls.Weight, 1e-9)
	assert.InDelta(t, 1.5, ls.Contribution, 1e-9)
	assert.Equal(t, 100.0, ls.Raw)

	fw := r.Explanation[MetricFairWages]
	assert.InDelta(t, 0.0, fw.Contribution, 1e-9)
	assert.InDelta(t, 1.0, fw.Weight, 1e-9)
}

func TestComputeScorePeerRated(t *testing.T) {
	e := testEngine(t)
	s := schema.ScoringSubject{
		ID:            "shop",
		ChosenMetrics: []string{MetricProductQuality},
		Metrics:       map[string]any{MetricProductQuality: schema.PeerRatingAggregate{Average: 10, Count: 1}},
	}
	r := e.ComputeScore(s)
	// log10(2) ~ 0.30103
	assert.Equal(t, 30, r.OverallScore)
	assert.InDelta(t, math.Log10(2), r.Explanation[MetricProductQuality].Normalized, 1e-9)
}

func TestComputeScoreSkipsUnknown(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := NewEngine(nil, nil, WithLogger(zap.New(core)), WithClock(fixedClock))

	s := schema.ScoringSubject{
		ID:            "shop",
		ChosenMetrics: []string{"retired_metric", MetricCarbonNeutral},
		Metrics:       map[string]any{"retired_metric": 5, MetricCarbonNeutral: true},
	}
	r := e.ComputeScore(s)

	assert.Equal(t, 100, r.OverallScore)
	assert.Equal(t, []string{"retired_metric"}, r.Skipped)
	assert.NotContains(t, r.Explanation, "retired_metric")
	assert.Equal(t, 1, logs.FilterMessage("skipping metric").Len())
}

func TestComputeScoreMalformedPeerLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e := NewEngine(nil, nil, WithLogger(zap.New(core)))

	s := schema.ScoringSubject{
		ID:            "shop",
		ChosenMetrics: []string{MetricCommunityTrust, MetricCarbonNeutral},
		Metrics:       map[string]any{MetricCommunityTrust: "lots", MetricCarbonNeutral: true},
	}
	r := e.ComputeScore(s)

	assert.Equal(t, 50, r.OverallScore)
	assert.Contains(t, r.Explanation, MetricCommunityTrust)
	assert.Equal(t, 1, logs.Len())
}

func TestComputeScoreZeroWeights(t *testing.T) {
	weights, err := NewWeightTable(map[string]map[string]float64{"food": {MetricCarbonNeutral: 0}}, nil)
	require.NoError(t, err)
	e := NewEngine(nil, weights)

	r := e.ComputeScore(schema.ScoringSubject{
		ID:            "s",
		Categories:    []string{"food"},
		ChosenMetrics: []string{MetricCarbonNeutral},
		Metrics:       map[string]any{MetricCarbonNeutral: true},
	})
	assert.Equal(t, 0, r.OverallScore)
	assert.Contains(t, r.Explanation, MetricCarbonNeutral)
}

func TestComputeScoreIdempotent(t *testing.T) {
	e := NewEngine(DefaultCatalog(), DefaultWeightTable())
	s := schema.ScoringSubject{
		ID:            "shop",
		Categories:    []string{"electronics", "furniture"},
		BusinessSize:  schema.LargeSize,
		ChosenMetrics: []string{MetricRepairability, MetricDurability, MetricRenewableEnergy, MetricCertifications, MetricDurability},
		Metrics: map[string]any{
			MetricRepairability:   6,
			MetricDurability:      8.5,
			MetricRenewableEnergy: 33,
			MetricCertifications:  []string{"energy-star"},
		},
	}
	first := e.ComputeScore(s)
	second := e.ComputeScore(s)
	// ComputedAt is metadata taken from the wall clock
	assert.Equal(t, first.SubjectID, second.SubjectID)
	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.Equal(t, first.Explanation, second.Explanation)
	assert.Equal(t, first.Skipped, second.Skipped)
	assert.False(t, second.ComputedAt.Before(first.ComputedAt))
	assert.Len(t, first.Explanation, 4, "duplicate chosen keys count once")
	assert.GreaterOrEqual(t, first.OverallScore, 0)
	assert.LessOrEqual(t, first.OverallScore, 100)
}

func TestComputeScoreBounds(t *testing.T) {
	e := testEngine(t)
	all := make(map[string]any)
	var chosen []string
	for _, d := range e.Catalog().Definitions() {
		chosen = append(chosen, d.Key)
		switch d.Kind {
		case schema.BooleanKind:
			all[d.Key] = true
		case schema.Bounded0to10Kind:
			all[d.Key] = 99
		case schema.PercentageKind:
			all[d.Key] = 1000
		case schema.PeerRatedKind:
			all[d.Key] = schema.PeerRatingAggregate{Average: 50, Count: 100}
		case schema.StructuredListKind:
			all[d.Key] = []string{"x"}
		}
	}
	r := e.ComputeScore(schema.ScoringSubject{ID: "max", Categories: []string{"food"}, BusinessSize: schema.LargeSize, ChosenMetrics: chosen, Metrics: all})
	assert.Equal(t, 100, r.OverallScore)
}

// BenchmarkComputeScore benchmarks score calculation.
func BenchmarkComputeScore(b *testing.B) {
	e := NewEngine(nil, nil)
	s := schema.ScoringSubject{
		ID:            "bench",
		Categories:    []string{"food", "services"},
		BusinessSize:  schema.SmallSize,
		ChosenMetrics: []string{MetricLocalSourcing, MetricFairWages, MetricCommunityTrust, MetricCertifications},
		Metrics: map[string]any{
			MetricLocalSourcing:  55.0,
			MetricFairWages:      true,
			MetricCommunityTrust: map[string]any{"average": 8.2, "count": 14.0},
			MetricCertifications: []any{"fair-trade"},
		},
	}

	for b.Loop() {
		e.ComputeScore(s)
	}
}
