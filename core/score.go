package core

import (
	"errors"
	"math"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/huangsam/ers/schema"
)

// Engine computes ERS scores from a catalog and a weight table.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalog *Catalog
	weights *WeightTable
	logger  *zap.Logger
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for per-metric diagnostics.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the clock used for ScoreResult.ComputedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine wires an engine with explicit catalog and weight table.
// Nil arguments fall back to the defaults.
func NewEngine(catalog *Catalog, weights *WeightTable, opts ...EngineOption) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if weights == nil {
		weights = DefaultWeightTable()
	}
	e := &Engine{
		catalog: catalog,
		weights: weights,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's metric catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Weights returns the engine's weight table.
func (e *Engine) Weights() *WeightTable { return e.weights }

// scoredKeys returns chosen metrics that carry a reported value, sorted and de-duplicated.
func scoredKeys(s *schema.ScoringSubject) []string {
	keys := make([]string, 0, len(s.ChosenMetrics))
	for _, k := range s.ChosenMetrics {
		if raw, ok := s.Metrics[k]; ok && IsReported(raw) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return slices.Compact(keys)
}

// ComputeScore produces the overall score and the per-metric explanation of a subject.
// Unknown metric keys are skipped rather than failing the whole computation.
// Apart from the ComputedAt metadata the result depends only on the subject.
func (e *Engine) ComputeScore(s schema.ScoringSubject) schema.ScoreResult {
	result := schema.ScoreResult{
		SubjectID:   s.ID,
		Explanation: make(map[string]schema.ExplanationEntry),
		ComputedAt:  e.now().UTC(),
	}

	keys := scoredKeys(&s)
	if len(keys) == 0 {
		return result
	}

	var totalWeight, totalContribution float64
	for _, k := range keys {
		raw := s.Metrics[k]
		kind, err := e.catalog.KindOf(k)
		if err != nil {
			e.logger.Debug("skipping metric", zap.String("subject", s.ID), zap.String("metric", k), zap.Error(err))
			result.Skipped = append(result.Skipped, k)
			continue
		}

		normalized, err := normalize(raw, kind)
		if errors.Is(err, schema.ErrMalformedPeerData) {
			e.logger.Warn("malformed peer data scored as zero", zap.String("subject", s.ID), zap.String("metric", k), zap.Error(err))
		}
		weight := e.weights.WeightFor(k, s.Categories, s.BusinessSize)
		contribution := normalized * weight

		result.Explanation[k] = schema.ExplanationEntry{
			Raw:          raw,
			Normalized:   normalized,
			Weight:       weight,
			Contribution: contribution,
		}
		totalWeight += weight
		totalContribution += contribution
	}

	if totalWeight > 0 {
		score := math.Round(100 * totalContribution / totalWeight)
		result.OverallScore = int(clamp(score, 0, 100))
	}
	return result
}
