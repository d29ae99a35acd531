package core

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/huangsam/ers/schema"
)

// neutralWeight is the multiplier used for any absent table entry.
const neutralWeight = 1.0

// WeightTable holds per-category and per-business-size relevance multipliers.
// It is immutable after construction and safe for concurrent use.
type WeightTable struct {
	category map[string]map[string]float64
	size     map[schema.BusinessSize]map[string]float64
}

// WeightTableOption configures NewWeightTable.
type WeightTableOption func(*weightTableOptions)

type weightTableOptions struct {
	catalog *Catalog
}

// WithCatalog makes NewWeightTable reject metric keys the catalog does not know.
func WithCatalog(c *Catalog) WeightTableOption {
	return func(o *weightTableOptions) {
		o.catalog = c
	}
}

// NewWeightTable builds a weight table from category and size mappings.
// Inputs are deep-copied. Category names are matched case-insensitively.
func NewWeightTable(category map[string]map[string]float64, size map[schema.BusinessSize]map[string]float64, opts ...WeightTableOption) (*WeightTable, error) {
	var o weightTableOptions
	for _, opt := range opts {
		opt(&o)
	}

	t := &WeightTable{
		category: make(map[string]map[string]float64, len(category)),
		size:     make(map[schema.BusinessSize]map[string]float64, len(size)),
	}
	for cat, weights := range category {
		if err := validateWeights(fmt.Sprintf("category %s", cat), weights, o.catalog); err != nil {
			return nil, err
		}
		key := normalizeCategory(cat)
		if t.category[key] == nil {
			t.category[key] = make(map[string]float64, len(weights))
		}
		maps.Copy(t.category[key], weights)
	}
	for sz, weights := range size {
		if _, ok := schema.ValidBusinessSizes[sz]; !ok {
			return nil, fmt.Errorf("invalid business size '%s'. must be micro, small, medium, large", sz)
		}
		if err := validateWeights(fmt.Sprintf("size %s", sz), weights, o.catalog); err != nil {
			return nil, err
		}
		t.size[sz] = maps.Clone(weights)
	}
	return t, nil
}

// validateWeights rejects negative or non-finite multipliers and, when a catalog is given, unknown keys.
func validateWeights(scope string, weights map[string]float64, c *Catalog) error {
	for metric, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%s: weight for %s must be a finite number >= 0 (received %v)", scope, metric, w)
		}
		if c != nil && !c.Has(metric) {
			return fmt.Errorf("%s: %w: %s", scope, schema.ErrUnknownMetric, metric)
		}
	}
	return nil
}

func normalizeCategory(cat string) string {
	return strings.ToLower(strings.TrimSpace(cat))
}

// WeightFor returns the effective weight of a metric for a subject.
// With several categories the largest category multiplier wins. Unknown
// categories and sizes contribute the neutral multiplier.
func (t *WeightTable) WeightFor(metricKey string, categories []string, size schema.BusinessSize) float64 {
	catMul := neutralWeight
	for i, cat := range categories {
		m, ok := t.category[normalizeCategory(cat)][metricKey]
		if !ok {
			m = neutralWeight
		}
		if i == 0 || m > catMul {
			catMul = m
		}
	}

	sizeMul, ok := t.size[size][metricKey]
	if !ok {
		sizeMul = neutralWeight
	}

	return neutralWeight * catMul * sizeMul
}

// CategoryWeights returns a copy of the category mapping.
func (t *WeightTable) CategoryWeights() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t.category))
	for k, v := range t.category {
		out[k] = maps.Clone(v)
	}
	return out
}

// SizeWeights returns a copy of the business size mapping.
func (t *WeightTable) SizeWeights() map[schema.BusinessSize]map[string]float64 {
	out := make(map[schema.BusinessSize]map[string]float64, len(t.size))
	for k, v := range t.size {
		out[k] = maps.Clone(v)
	}
	return out
}

// Merge returns a new table where the given overrides replace matching entries.
func (t *WeightTable) Merge(category map[string]map[string]float64, size map[schema.BusinessSize]map[string]float64, opts ...WeightTableOption) (*WeightTable, error) {
	cat := t.CategoryWeights()
	for k, v := range category {
		key := normalizeCategory(k)
		if cat[key] == nil {
			cat[key] = make(map[string]float64, len(v))
		}
		maps.Copy(cat[key], v)
	}
	sz := t.SizeWeights()
	for k, v := range size {
		if sz[k] == nil {
			sz[k] = make(map[string]float64, len(v))
		}
		maps.Copy(sz[k], v)
	}
	return NewWeightTable(cat, sz, opts...)
}

// DefaultWeightTable returns the marketplace relevance table.
func DefaultWeightTable() *WeightTable {
	t, err := NewWeightTable(
		map[string]map[string]float64{
			"food": {
				MetricLocalSourcing:       1.5,
				MetricVeganFriendly:       1.5,
				MetricAnimalWelfarePolicy: 1.4,
				MetricRecycledPackaging:   1.3,
				MetricProductQuality:      1.2,
			},
			"clothing": {
				MetricFairWages:         1.6,
				MetricEthicalSourcing:   1.5,
				MetricDurability:        1.3,
				MetricRecycledPackaging: 1.1,
			},
			"electronics": {
				MetricRepairability:   1.8,
				MetricDurability:      1.5,
				MetricRenewableEnergy: 1.2,
				MetricCertifications:  1.2,
			},
			"furniture": {
				MetricDurability:    1.4,
				MetricLocalSourcing: 1.3,
				MetricRepairability: 1.3,
			},
			"services": {
				MetricResponseRate:      1.5,
				MetricCommunityTrust:    1.4,
				MetricVolunteerPrograms: 1.1,
			},
		},
		map[schema.BusinessSize]map[string]float64{
			schema.MicroSize: {
				MetricCertifications:  0.5,
				MetricCarbonNeutral:   0.8,
				MetricRenewableEnergy: 0.8,
			},
			schema.SmallSize: {
				MetricCertifications: 0.7,
				MetricCarbonNeutral:  0.9,
			},
			schema.LargeSize: {
				MetricCarbonNeutral:    1.3,
				MetricRenewableEnergy:  1.3,
				MetricFairWages:        1.2,
				MetricCertifications:   1.2,
				MetricDonationPartners: 1.1,
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}
