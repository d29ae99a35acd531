package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// scoreCacheVersion is bumped whenever the cached ScoreResult encoding changes.
const scoreCacheVersion = 1

const lockStripes = 64

// stripedMutex serializes work per key without one lock per key.
type stripedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (s *stripedMutex) lock(parts ...string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.Join(parts, "\x00")))
	m := &s.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// RatingService runs the stateful side of scoring: peer rating submission,
// metric edits and the cached score view.
type RatingService struct {
	engine   *Engine
	subjects contract.SubjectStore
	ratings  contract.RatingStore
	cache    contract.ScoreCache
	logger   *zap.Logger
	now      func() time.Time

	aggLocks   stripedMutex // per (subject, metric)
	scoreLocks stripedMutex // per subject
	inflight   singleflight.Group
}

// RatingServiceOption configures a RatingService.
type RatingServiceOption func(*RatingService)

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *zap.Logger) RatingServiceOption {
	return func(s *RatingService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceClock overrides the clock used for rating timestamps.
func WithServiceClock(now func() time.Time) RatingServiceOption {
	return func(s *RatingService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRatingService wires the service to its engine and storage.
func NewRatingService(engine *Engine, subjects contract.SubjectStore, ratings contract.RatingStore, cache contract.ScoreCache, opts ...RatingServiceOption) *RatingService {
	s := &RatingService{
		engine:   engine,
		subjects: subjects,
		ratings:  ratings,
		cache:    cache,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine used by the service.
func (s *RatingService) Engine() *Engine { return s.engine }

// SubmitPeerRating records a rater's rating on a peer-rated metric of a subject.
// A later submission by the same rater replaces the earlier one. After the
// upsert the aggregate and the subject's cached score are recomputed.
// Rejected submissions leave stored state untouched.
func (s *RatingService) SubmitPeerRating(ctx context.Context, subjectID, metricKey, raterID string, rating int) error {
	if err := s.validateRating(metricKey, raterID, rating); err != nil {
		return err
	}

	subject, err := s.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	if subject.OwnerID == raterID {
		return fmt.Errorf("%w: %s owns %s", schema.ErrSelfRatingForbidden, raterID, subjectID)
	}

	rec := schema.PeerRatingRecord{
		SubjectID: subjectID,
		MetricKey: metricKey,
		RaterID:   raterID,
		Rating:    rating,
		Timestamp: s.now().UTC(),
	}
	if err := s.ratings.UpsertRating(ctx, rec); err != nil {
		return fmt.Errorf("failed to store rating: %w", err)
	}
	s.logger.Debug("rating stored", zap.String("subject", subjectID), zap.String("metric", metricKey), zap.String("rater", raterID), zap.Int("rating", rating))

	if _, err := s.refreshAggregate(ctx, subjectID, metricKey); err != nil {
		return err
	}
	_, err = s.RecomputeScore(ctx, subjectID)
	return err
}

func (s *RatingService) validateRating(metricKey, raterID string, rating int) error {
	kind, err := s.engine.Catalog().KindOf(metricKey)
	if err != nil {
		return fmt.Errorf("%w: %w", schema.ErrInvalidRating, err)
	}
	if kind != schema.PeerRatedKind {
		return fmt.Errorf("%w: metric %s is %s, not peer rated", schema.ErrInvalidRating, metricKey, kind)
	}
	if rating < schema.MinPeerRating || rating > schema.MaxPeerRating {
		return fmt.Errorf("%w: rating must be between %d and %d (received %d)", schema.ErrInvalidRating, schema.MinPeerRating, schema.MaxPeerRating, rating)
	}
	if strings.TrimSpace(raterID) == "" {
		return fmt.Errorf("%w: rater id is required", schema.ErrInvalidRating)
	}
	return nil
}

// maxAggregateAttempts bounds how often refreshAggregate republishes while
// other writers keep committing records for the same pair.
const maxAggregateAttempts = 5

// refreshAggregate recomputes the aggregate of a (subject, metric) pair from
// every committed record and writes it onto the subject's metric entry.
// Writers in other processes share the store but not aggLocks, so the record
// set is listed again after each write and republished until it is stable.
// A record committed after the final list is published by its own writer.
func (s *RatingService) refreshAggregate(ctx context.Context, subjectID, metricKey string) (schema.PeerRatingAggregate, error) {
	unlock := s.aggLocks.lock(subjectID, metricKey)
	defer unlock()

	agg, err := s.Aggregate(ctx, subjectID, metricKey)
	if err != nil {
		return schema.PeerRatingAggregate{}, fmt.Errorf("failed to list ratings: %w", err)
	}
	for attempt := 1; ; attempt++ {
		var raw any = agg
		if agg.Count == 0 {
			raw = nil
		}
		if err := s.subjects.SetMetricValue(ctx, subjectID, metricKey, raw); err != nil {
			return schema.PeerRatingAggregate{}, fmt.Errorf("failed to store aggregate: %w", err)
		}

		latest, err := s.Aggregate(ctx, subjectID, metricKey)
		if err != nil {
			return schema.PeerRatingAggregate{}, fmt.Errorf("failed to list ratings: %w", err)
		}
		if latest == agg {
			return agg, nil
		}
		if attempt == maxAggregateAttempts {
			s.logger.Warn("peer aggregate still changing", zap.String("subject", subjectID), zap.String("metric", metricKey), zap.Int("attempts", attempt))
			return agg, nil
		}
		agg = latest
	}
}

// Aggregate returns the current aggregate of a (subject, metric) pair from the record store.
func (s *RatingService) Aggregate(ctx context.Context, subjectID, metricKey string) (schema.PeerRatingAggregate, error) {
	records, err := s.ratings.ListRatings(ctx, subjectID, metricKey)
	if err != nil {
		return schema.PeerRatingAggregate{}, err
	}
	return AggregateRecords(records), nil
}

// SaveSubject validates and stores a subject, then recomputes its score.
// Peer-rated values in the subject are dropped: they only come from ratings.
func (s *RatingService) SaveSubject(ctx context.Context, subject schema.ScoringSubject) (schema.ScoreResult, error) {
	if err := subject.Validate(); err != nil {
		return schema.ScoreResult{}, err
	}
	subject = s.withoutPeerValues(subject)
	if err := s.subjects.PutSubject(ctx, subject); err != nil {
		return schema.ScoreResult{}, fmt.Errorf("failed to store subject %s: %w", subject.ID, err)
	}
	if err := s.syncAggregates(ctx, subject.ID); err != nil {
		return schema.ScoreResult{}, err
	}
	return s.RecomputeScore(ctx, subject.ID)
}

// withoutPeerValues returns a copy of the subject without peer-rated metric values.
func (s *RatingService) withoutPeerValues(subject schema.ScoringSubject) schema.ScoringSubject {
	clone := subject.Clone()
	for key := range clone.Metrics {
		if kind, err := s.engine.Catalog().KindOf(key); err == nil && kind == schema.PeerRatedKind {
			s.logger.Debug("dropping reported peer value", zap.String("subject", subject.ID), zap.String("metric", key))
			delete(clone.Metrics, key)
		}
	}
	return clone
}

// syncAggregates rewrites every peer-rated metric of a subject from its stored
// ratings. Metrics without ratings are cleared.
func (s *RatingService) syncAggregates(ctx context.Context, subjectID string) error {
	for _, d := range s.engine.Catalog().Definitions() {
		if d.Kind != schema.PeerRatedKind {
			continue
		}
		if _, err := s.refreshAggregate(ctx, subjectID, d.Key); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMetric sets one owner-reported metric value and recomputes the score.
// Peer-rated metrics are derived from ratings and cannot be set directly.
// A nil value un-reports the metric.
func (s *RatingService) UpdateMetric(ctx context.Context, subjectID, metricKey string, raw any) (schema.ScoreResult, error) {
	kind, err := s.engine.Catalog().KindOf(metricKey)
	if err != nil {
		return schema.ScoreResult{}, err
	}
	if kind == schema.PeerRatedKind {
		return schema.ScoreResult{}, fmt.Errorf("metric %s is peer rated and derived from submitted ratings", metricKey)
	}
	if _, err := s.subjects.GetSubject(ctx, subjectID); err != nil {
		return schema.ScoreResult{}, err
	}
	if err := s.subjects.SetMetricValue(ctx, subjectID, metricKey, raw); err != nil {
		return schema.ScoreResult{}, fmt.Errorf("failed to store metric %s: %w", metricKey, err)
	}
	return s.RecomputeScore(ctx, subjectID)
}

// RecomputeScore scores the stored subject and refreshes the persisted score and cached explanation.
func (s *RatingService) RecomputeScore(ctx context.Context, subjectID string) (schema.ScoreResult, error) {
	unlock := s.scoreLocks.lock(subjectID)
	defer unlock()

	subject, err := s.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return schema.ScoreResult{}, err
	}
	if err := s.applyPeerAggregates(ctx, &subject); err != nil {
		return schema.ScoreResult{}, err
	}
	result := s.engine.ComputeScore(subject)

	if err := s.subjects.SaveScore(ctx, subjectID, result.OverallScore, result.ComputedAt); err != nil {
		return schema.ScoreResult{}, fmt.Errorf("failed to save score for %s: %w", subjectID, err)
	}
	s.storeCached(ctx, result)
	return result, nil
}

// applyPeerAggregates replaces the chosen peer-rated values of a subject with
// aggregates of the committed records, so a stale stored aggregate never reaches the score.
func (s *RatingService) applyPeerAggregates(ctx context.Context, subject *schema.ScoringSubject) error {
	for _, d := range s.engine.Catalog().Definitions() {
		if d.Kind != schema.PeerRatedKind || !subject.IsChosen(d.Key) {
			continue
		}
		agg, err := s.Aggregate(ctx, subject.ID, d.Key)
		if err != nil {
			return fmt.Errorf("failed to list ratings for %s: %w", subject.ID, err)
		}
		if subject.Metrics == nil {
			subject.Metrics = make(map[string]any)
		}
		if agg.Count == 0 {
			delete(subject.Metrics, d.Key)
		} else {
			subject.Metrics[d.Key] = agg
		}
	}
	return nil
}

// GetExplanation returns the cached score view of a subject, recomputing it
// when the cache has no usable entry. Concurrent misses share one recompute.
func (s *RatingService) GetExplanation(ctx context.Context, subjectID string) (schema.ScoreResult, error) {
	if result, ok := s.loadCached(ctx, subjectID); ok {
		return result, nil
	}
	v, err, _ := s.inflight.Do(subjectID, func() (any, error) {
		return s.RecomputeScore(ctx, subjectID)
	})
	if err != nil {
		return schema.ScoreResult{}, err
	}
	return v.(schema.ScoreResult), nil
}

func (s *RatingService) loadCached(ctx context.Context, subjectID string) (schema.ScoreResult, bool) {
	value, version, _, err := s.cache.Get(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, schema.ErrCacheMiss) {
			s.logger.Warn("score cache read failed", zap.String("subject", subjectID), zap.Error(err))
		}
		return schema.ScoreResult{}, false
	}
	if version != scoreCacheVersion {
		return schema.ScoreResult{}, false
	}
	var result schema.ScoreResult
	if err := json.Unmarshal(value, &result); err != nil {
		s.logger.Warn("score cache entry is corrupt", zap.String("subject", subjectID), zap.Error(err))
		return schema.ScoreResult{}, false
	}
	return result, true
}

func (s *RatingService) storeCached(ctx context.Context, result schema.ScoreResult) {
	value, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("score result not cacheable", zap.String("subject", result.SubjectID), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, result.SubjectID, value, scoreCacheVersion, result.ComputedAt.Unix()); err != nil {
		s.logger.Warn("score cache write failed", zap.String("subject", result.SubjectID), zap.Error(err))
	}
}

// RescoreAll rebuilds peer aggregates from stored ratings and recomputes the
// score of every stored subject using at most workers goroutines.
// It returns the number of subjects rescored.
func (s *RatingService) RescoreAll(ctx context.Context, workers int) (int, error) {
	ids, err := s.subjects.ListSubjectIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list subjects: %w", err)
	}
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.syncAggregates(gctx, id); err != nil {
				return err
			}
			_, err := s.RecomputeScore(gctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	s.logger.Info("rescored subjects", zap.Int("count", len(ids)), zap.Int("workers", workers))
	return len(ids), nil
}
