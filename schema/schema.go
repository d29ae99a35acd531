// Package schema has models, constants and errors shared by all parts of ers.
package schema

import "time"

// MetricDefinition describes one metric a subject may report.
type MetricDefinition struct {
	Key   string     `json:"key" yaml:"key"`
	Label string     `json:"label" yaml:"label"`
	Kind  MetricKind `json:"kind" yaml:"kind"`
}

// PeerRatingRecord is one rating by one rater on one metric of one subject.
// At most one record exists per (SubjectID, MetricKey, RaterID).
type PeerRatingRecord struct {
	SubjectID string    `json:"subject_id"`
	MetricKey string    `json:"metric_key"`
	RaterID   string    `json:"rater_id"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// PeerRatingAggregate is the derived average/count view over all records
// for a (subject, metric) pair.
type PeerRatingAggregate struct {
	Average float64 `json:"average" yaml:"average"`
	Count   int     `json:"count" yaml:"count"`
}

// ScoringSubject is a product, service or user being scored.
type ScoringSubject struct {
	ID            string         `json:"id" yaml:"id"`
	OwnerID       string         `json:"owner_id" yaml:"owner_id"`
	Kind          SubjectKind    `json:"kind" yaml:"kind"`
	Categories    []string       `json:"categories" yaml:"categories"`
	BusinessSize  BusinessSize   `json:"business_size,omitempty" yaml:"business_size"` // products/services only
	ChosenMetrics []string       `json:"chosen_metrics" yaml:"chosen_metrics"`
	Metrics       map[string]any `json:"metrics" yaml:"metrics"` // metric key -> raw value; nil means not reported
}

// ExplanationEntry is the per-metric "why this score" record.
type ExplanationEntry struct {
	Raw          any     `json:"raw"`
	Normalized   float64 `json:"normalized"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ScoreResult is the overall score with its explanation.
type ScoreResult struct {
	SubjectID    string                      `json:"subject_id"`
	OverallScore int                         `json:"overall_score"`
	Explanation  map[string]ExplanationEntry `json:"explanation"`
	Skipped      []string                    `json:"skipped,omitempty"` // stale or unknown metric keys
	ComputedAt   time.Time                   `json:"computed_at"`       // metadata; not part of the scored output
}
