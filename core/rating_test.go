package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/huangsam/ers/internal/iocache"
	"github.com/huangsam/ers/schema"
)

type ratingFixture struct {
	svc   *RatingService
	store *iocache.MemoryStore
	cache *iocache.MemoryScoreCache
}

func newRatingFixture(t *testing.T) ratingFixture {
	t.Helper()
	store := iocache.NewMemoryStore()
	cache := iocache.NewMemoryScoreCache()
	svc := NewRatingService(NewEngine(nil, nil, WithClock(fixedClock)), store, store, cache, WithServiceClock(fixedClock))

	_, err := svc.SaveSubject(context.Background(), schema.ScoringSubject{
		ID:            "shop",
		OwnerID:       "owner",
		Kind:          schema.ServiceSubject,
		ChosenMetrics: []string{MetricCommunityTrust, MetricCarbonNeutral},
		Metrics:       map[string]any{MetricCarbonNeutral: true},
	})
	require.NoError(t, err)
	return ratingFixture{svc: svc, store: store, cache: cache}
}

func TestSubmitPeerRatingReplaces(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	require.NoError(t, f.svc.SubmitPeerRating(ctx, "shop", MetricCommunityTrust, "alice", 3))
	require.NoError(t, f.svc.SubmitPeerRating(ctx, "shop", MetricCommunityTrust, "alice", 8))

	agg, err := f.svc.Aggregate(ctx, "shop", MetricCommunityTrust)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Count)
	assert.InDelta(t, 8.0, agg.Average, 1e-9)

	subject, err := f.store.GetSubject(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, schema.PeerRatingAggregate{Average: 8, Count: 1}, subject.Metrics[MetricCommunityTrust])
}

func TestSubmitPeerRatingConcurrentRaters(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	var wg sync.WaitGroup
	for rater, rating := range map[string]int{"alice": 10, "bob": 4} {
		wg.Go(func() {
			assert.NoError(t, f.svc.SubmitPeerRating(ctx, "shop", MetricCommunityTrust, rater, rating))
		})
	}
	wg.Wait()

	agg, err := f.svc.Aggregate(ctx, "shop", MetricCommunityTrust)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Count)
	assert.InDelta(t, 7.0, agg.Average, 1e-9)

	subject, err := f.store.GetSubject(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, schema.PeerRatingAggregate{Average: 7, Count: 2}, subject.Metrics[MetricCommunityTrust])
}

func TestSubmitPeerRatingManyConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Go(func() {
			rater := fmt.Sprintf("rater-%d", i%20)
			assert.NoError(t, f.svc.SubmitPeerRating(ctx, "shop", MetricCommunityTrust, rater, 5))
		})
	}
	wg.Wait()

	subject, err := f.store.GetSubject(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, schema.PeerRatingAggregate{Average: 5, Count: 20}, subject.Metrics[MetricCommunityTrust])
}

func TestSubmitPeerRatingRejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		subject string
		metric  string
		rater   string
		rating  int
		wantErr error
	}{
		{"self rating", "shop", MetricCommunityTrust, "owner", 9, schema.ErrSelfRatingForbidden},
		{"rating too low", "shop", MetricCommunityTrust, "alice", 0, schema.ErrInvalidRating},
		{"rating too high", "shop", MetricCommunityTrust, "alice", 11, schema.ErrInvalidRating},
		{"unknown metric", "shop", "vibes", "alice", 5, schema.ErrInvalidRating},
		{"not peer rated", "shop", MetricCarbonNeutral, "alice", 5, schema.ErrInvalidRating},
		{"empty rater", "shop", MetricCommunityTrust, " ", 5, schema.ErrInvalidRating},
		{"missing subject", "ghost", MetricCommunityTrust, "alice", 5, schema.ErrSubjectNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRatingFixture(t)
			before, err := f.store.GetSubject(ctx, "shop")
			require.NoError(t, err)

			err = f.svc.SubmitPeerRating(ctx, tt.subject, tt.metric, tt.rater, tt.rating)
			assert.ErrorIs(t, err, tt.wantErr)

			records, err := f.store.ListAllRatings(ctx)
			require.NoError(t, err)
			assert.Empty(t, records)

			after, err := f.store.GetSubject(ctx, "shop")
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestSaveSubjectKeepsAggregates(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)
	require.NoError(t, f.svc.SubmitPeerRating(ctx, "shop", MetricCommunityTrust, "alice", 10))

	// Re-saving the subject without the aggregate must not drop it
	result, err := f.svc.SaveSubject(ctx, schema.ScoringSubject{
		ID:            "shop",
		OwnerID:       "owner",
		Kind:          schema.ServiceSubject,
		ChosenMetrics: []string{MetricCommunityTrust},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, result.OverallScore)
}

func TestSaveSubjectDropsReportedPeerValues(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	metrics := map[string]any{MetricCommunityTrust: map[string]any{"average": 10, "count": 500}}
	result, err := f.svc.SaveSubject(ctx, schema.ScoringSubject{
		ID:            "shop",
		OwnerID:       "owner",
		Kind:          schema.ServiceSubject,
		ChosenMetrics: []string{MetricCommunityTrust},
		Metrics:       metrics,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.OverallScore)
	assert.Empty(t, result.Explanation)
	assert.Contains(t, metrics, MetricCommunityTrust, "caller's map is left alone")

	subject, err := f.store.GetSubject(ctx, "shop")
	require.NoError(t, err)
	assert.NotContains(t, subject.Metrics, MetricCommunityTrust)

	// A value written straight to the store is ignored in favor of the ratings
	require.NoError(t, f.store.SetMetricValue(ctx, "shop", MetricCommunityTrust, schema.PeerRatingAggregate{Average: 10, Count: 500}))
	result, err = f.svc.RecomputeScore(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 0, result.OverallScore)
}

// stallingRatings holds the first ListRatings call after taking its snapshot
// until release is closed.
type stallingRatings struct {
	*iocache.MemoryStore
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func (s *stallingRatings) ListRatings(ctx context.Context, subjectID, metricKey string) ([]schema.PeerRatingRecord, error) {
	recs, err := s.MemoryStore.ListRatings(ctx, subjectID, metricKey)
	s.once.Do(func() {
		close(s.listed)
		<-s.release
	})
	return recs, err
}

func TestSubmitPeerRatingAcrossServices(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	// Two services over one store share no locks, like two CLI processes
	slow := &stallingRatings{MemoryStore: f.store, listed: make(chan struct{}), release: make(chan struct{})}
	other := NewRatingService(f.svc.Engine(), f.store, slow, f.cache, WithServiceClock(fixedClock))

	errc := make(chan error, 1)
	go func() {
		errc <- other.SubmitPeerRating(ctx, "shop", MetricCommunityTrust, "alice", 10)
	}()

	<-slow.listed
	require.NoError(t, f.svc.SubmitPeerRating(ctx, "shop", MetricCommunityTrust, "bob", 4))
	close(slow.release)
	require.NoError(t, <-errc)

	records, err := f.store.ListRatings(ctx, "shop", MetricCommunityTrust)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	subject, err := f.store.GetSubject(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, schema.PeerRatingAggregate{Average: 7, Count: 2}, subject.Metrics[MetricCommunityTrust])

	// (1 + 0.7*log10(3)) / 2 = 0.667
	got, err := f.svc.GetExplanation(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 67, got.OverallScore)
}

func TestSaveSubjectInvalid(t *testing.T) {
	f := newRatingFixture(t)
	_, err := f.svc.SaveSubject(context.Background(), schema.ScoringSubject{})
	assert.Error(t, err)
}

func TestUpdateMetric(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	result, err := f.svc.UpdateMetric(ctx, "shop", MetricCarbonNeutral, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.OverallScore)

	result, err = f.svc.UpdateMetric(ctx, "shop", MetricCarbonNeutral, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Explanation, "nil un-reports the metric")

	_, err = f.svc.UpdateMetric(ctx, "shop", MetricCommunityTrust, 9)
	assert.Error(t, err)

	_, err = f.svc.UpdateMetric(ctx, "shop", "vibes", 9)
	assert.ErrorIs(t, err, schema.ErrUnknownMetric)

	_, err = f.svc.UpdateMetric(ctx, "ghost", MetricCarbonNeutral, true)
	assert.ErrorIs(t, err, schema.ErrSubjectNotFound)
}

func TestGetExplanationUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	// SaveSubject populated the cache
	value, version, ts, err := f.cache.Get(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, scoreCacheVersion, version)
	assert.Equal(t, fixedNow.Unix(), ts)

	var cached schema.ScoreResult
	require.NoError(t, json.Unmarshal(value, &cached))
	assert.Equal(t, 100, cached.OverallScore)

	// A planted entry is served as-is
	cached.OverallScore = 42
	planted, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(ctx, "shop", planted, scoreCacheVersion, ts))

	got, err := f.svc.GetExplanation(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 42, got.OverallScore)

	// A stale version is recomputed
	require.NoError(t, f.cache.Set(ctx, "shop", planted, scoreCacheVersion+1, ts))
	got, err = f.svc.GetExplanation(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 100, got.OverallScore)
}

func TestGetExplanationMiss(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)
	require.NoError(t, f.cache.Clear(ctx))

	got, err := f.svc.GetExplanation(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 100, got.OverallScore)

	_, _, _, err = f.cache.Get(ctx, "shop")
	assert.NoError(t, err, "miss repopulates the cache")

	_, err = f.svc.GetExplanation(ctx, "ghost")
	assert.ErrorIs(t, err, schema.ErrSubjectNotFound)
}

func TestCacheFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	cache := new(iocache.MockScoreCache)
	cache.On("Get", mock.Anything, "shop").Return(nil, 0, int64(0), errors.New("connection refused"))
	cache.On("Set", mock.Anything, "shop", mock.Anything, scoreCacheVersion, mock.Anything).Return(errors.New("connection refused"))

	svc := NewRatingService(NewEngine(nil, nil), store, store, cache)
	require.NoError(t, store.PutSubject(ctx, schema.ScoringSubject{ID: "shop", ChosenMetrics: []string{MetricFairWages}, Metrics: map[string]any{MetricFairWages: true}}))

	got, err := svc.GetExplanation(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 100, got.OverallScore)
	cache.AssertExpectations(t)
}

func TestRescoreAll(t *testing.T) {
	ctx := context.Background()
	f := newRatingFixture(t)

	// Ratings written behind the service's back are picked up
	require.NoError(t, f.store.UpsertRating(ctx, schema.PeerRatingRecord{SubjectID: "shop", MetricKey: MetricCommunityTrust, RaterID: "a", Rating: 10, Timestamp: time.Now()}))
	for i := range 5 {
		id := fmt.Sprintf("extra-%d", i)
		require.NoError(t, f.store.PutSubject(ctx, schema.ScoringSubject{ID: id, ChosenMetrics: []string{MetricFairWages}, Metrics: map[string]any{MetricFairWages: true}}))
	}

	n, err := f.svc.RescoreAll(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	subject, err := f.store.GetSubject(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, schema.PeerRatingAggregate{Average: 10, Count: 1}, subject.Metrics[MetricCommunityTrust])

	scores, err := f.store.ListSubjectScores(ctx)
	require.NoError(t, err)
	for _, s := range scores {
		assert.NotNil(t, s.OverallScore, s.SubjectID)
	}
}

func BenchmarkSubmitPeerRating(b *testing.B) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	svc := NewRatingService(NewEngine(nil, nil), store, store, iocache.NewMemoryScoreCache())
	if _, err := svc.SaveSubject(ctx, schema.ScoringSubject{ID: "s", OwnerID: "o", Kind: schema.ProductSubject, ChosenMetrics: []string{MetricCommunityTrust}}); err != nil {
		b.Fatal(err)
	}

	i := 0
	for b.Loop() {
		i++
		_ = svc.SubmitPeerRating(ctx, "s", MetricCommunityTrust, fmt.Sprintf("r%d", i%50), 1+i%10)
	}
}
