package schema

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// Validate checks the advisory fields of a subject that must be well-formed to be stored.
// Unknown categories are allowed; they simply carry neutral weight.
func (s *ScoringSubject) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("subject id is required")
	}
	if strings.TrimSpace(s.OwnerID) == "" {
		return fmt.Errorf("subject %s: owner id is required", s.ID)
	}
	if _, ok := ValidSubjectKinds[s.Kind]; !ok {
		return fmt.Errorf("subject %s: invalid kind '%s'. must be product, service, user", s.ID, s.Kind)
	}
	if s.Kind == UserSubject && s.BusinessSize != "" {
		return fmt.Errorf("subject %s: business size only applies to products and services", s.ID)
	}
	return nil
}

// Clone returns a deep copy of the subject. Raw metric values are copied by reference.
func (s *ScoringSubject) Clone() ScoringSubject {
	clone := *s
	clone.Categories = slices.Clone(s.Categories)
	clone.ChosenMetrics = slices.Clone(s.ChosenMetrics)
	if s.Metrics != nil {
		clone.Metrics = make(map[string]any, len(s.Metrics))
		maps.Copy(clone.Metrics, s.Metrics)
	}
	return clone
}

// IsChosen reports whether the subject opted in to the given metric.
func (s *ScoringSubject) IsChosen(key string) bool {
	return slices.Contains(s.ChosenMetrics, key)
}

// SortedKeys returns the explanation keys in a stable order.
func (r ScoreResult) SortedKeys() []string {
	keys := slices.Collect(maps.Keys(r.Explanation))
	sort.Strings(keys)
	return keys
}

// TopContributors returns up to n metric keys ordered by contribution, highest first.
// Ties are broken by key so output stays deterministic.
func (r ScoreResult) TopContributors(n int) []string {
	keys := r.SortedKeys()
	sort.SliceStable(keys, func(i, j int) bool {
		return r.Explanation[keys[i]].Contribution > r.Explanation[keys[j]].Contribution
	})
	if n >= 0 && len(keys) > n {
		return keys[:n]
	}
	return keys
}

// TotalWeight returns the sum of weights across the explanation.
func (r ScoreResult) TotalWeight() float64 {
	var total float64
	for _, e := range r.Explanation {
		total += e.Weight
	}
	return total
}
