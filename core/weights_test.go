package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huangsam/ers/schema"
)

func TestWeightFor(t *testing.T) {
	table, err := NewWeightTable(
		map[string]map[string]float64{
			"Food":     {"local": 1.5, "cheap": 0.5},
			"clothing": {"local": 1.2, "wages": 2.0},
		},
		map[schema.BusinessSize]map[string]float64{
			schema.LargeSize: {"local": 2.0},
		},
	)
	require.NoError(t, err)

	tests := []struct {
		name       string
		metric     string
		categories []string
		size       schema.BusinessSize
		want       float64
	}{
		{"unlisted metric and category", "unlistedMetric", []string{"unknownCategory"}, schema.LargeSize, 1.0},
		{"no categories or size", "local", nil, "", 1.0},
		{"category only", "local", []string{"food"}, "", 1.5},
		{"category match is case insensitive", "local", []string{" FOOD "}, "", 1.5},
		{"category times size", "local", []string{"food"}, schema.LargeSize, 3.0},
		{"largest category wins", "local", []string{"clothing", "food"}, "", 1.5},
		{"below neutral single category", "cheap", []string{"food"}, "", 0.5},
		{"unlisted category beats a lower one", "cheap", []string{"food", "toys"}, "", 1.0},
		{"size only", "local", []string{"toys"}, schema.LargeSize, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, table.WeightFor(tt.metric, tt.categories, tt.size), 1e-9)
		})
	}
}

func TestNewWeightTableValidation(t *testing.T) {
	_, err := NewWeightTable(map[string]map[string]float64{"food": {"x": -1}}, nil)
	assert.Error(t, err)

	_, err = NewWeightTable(map[string]map[string]float64{"food": {"x": math.NaN()}}, nil)
	assert.Error(t, err)

	_, err = NewWeightTable(nil, map[schema.BusinessSize]map[string]float64{"huge": {"x": 1}})
	assert.Error(t, err)

	_, err = NewWeightTable(map[string]map[string]float64{"food": {"nope": 1}}, nil, WithCatalog(DefaultCatalog()))
	assert.ErrorIs(t, err, schema.ErrUnknownMetric)

	_, err = NewWeightTable(map[string]map[string]float64{"food": {MetricFairWages: 0}}, nil, WithCatalog(DefaultCatalog()))
	assert.NoError(t, err, "zero weight is allowed")
}

func TestWeightTableIsolation(t *testing.T) {
	input := map[string]map[string]float64{"food": {"x": 2}}
	table, err := NewWeightTable(input, nil)
	require.NoError(t, err)

	input["food"]["x"] = 9
	assert.InDelta(t, 2.0, table.WeightFor("x", []string{"food"}, ""), 1e-9)

	out := table.CategoryWeights()
	out["food"]["x"] = 7
	assert.InDelta(t, 2.0, table.WeightFor("x", []string{"food"}, ""), 1e-9)
}

func TestWeightTableMerge(t *testing.T) {
	base := DefaultWeightTable()
	merged, err := base.Merge(
		map[string]map[string]float64{"Food": {MetricLocalSourcing: 3}},
		map[schema.BusinessSize]map[string]float64{schema.MediumSize: {MetricFairWages: 1.1}},
		WithCatalog(DefaultCatalog()),
	)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, merged.WeightFor(MetricLocalSourcing, []string{"food"}, ""), 1e-9)
	assert.InDelta(t, 1.5, merged.WeightFor(MetricVeganFriendly, []string{"food"}, ""), 1e-9, "untouched entries survive")
	assert.InDelta(t, 1.1, merged.WeightFor(MetricFairWages, nil, schema.MediumSize), 1e-9)
	assert.InDelta(t, 1.5, base.WeightFor(MetricLocalSourcing, []string{"food"}, ""), 1e-9, "base is unchanged")
}
