package iocache

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetStore implements the StoreManager interface.
func (m *MockStoreManager) GetStore() contract.Store {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.Store)
	return store
}

// GetScoreCache implements the StoreManager interface.
func (m *MockStoreManager) GetScoreCache() contract.ScoreCache {
	ret := m.Called()
	cache, _ := ret.Get(0).(contract.ScoreCache)
	return cache
}

// MockScoreCache is a mock implementation of ScoreCache for testing.
type MockScoreCache struct {
	mock.Mock
}

var _ contract.ScoreCache = &MockScoreCache{} // Compile-time check

// Get implements the ScoreCache interface.
func (m *MockScoreCache) Get(ctx context.Context, key string) ([]byte, int, int64, error) {
	args := m.Called(ctx, key)
	value, _ := args.Get(0).([]byte)
	return value, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the ScoreCache interface.
func (m *MockScoreCache) Set(ctx context.Context, key string, value []byte, version int, ts int64) error {
	args := m.Called(ctx, key, value, version, ts)
	return args.Error(0)
}

// Delete implements the ScoreCache interface.
func (m *MockScoreCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// GetStatus implements the ScoreCache interface.
func (m *MockScoreCache) GetStatus(ctx context.Context) (schema.CacheStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// Clear implements the ScoreCache interface.
func (m *MockScoreCache) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close implements the ScoreCache interface.
func (m *MockScoreCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockStore is a mock implementation of Store for testing.
type MockStore struct {
	mock.Mock
}

var _ contract.Store = &MockStore{} // Compile-time check

// GetSubject implements the SubjectStore interface.
func (m *MockStore) GetSubject(ctx context.Context, subjectID string) (schema.ScoringSubject, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(schema.ScoringSubject), args.Error(1)
}

// PutSubject implements the SubjectStore interface.
func (m *MockStore) PutSubject(ctx context.Context, subject schema.ScoringSubject) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

// SetMetricValue implements the SubjectStore interface.
func (m *MockStore) SetMetricValue(ctx context.Context, subjectID, metricKey string, raw any) error {
	args := m.Called(ctx, subjectID, metricKey, raw)
	return args.Error(0)
}

// SaveScore implements the SubjectStore interface.
func (m *MockStore) SaveScore(ctx context.Context, subjectID string, score int, computedAt time.Time) error {
	args := m.Called(ctx, subjectID, score, computedAt)
	return args.Error(0)
}

// ListSubjectIDs implements the SubjectStore interface.
func (m *MockStore) ListSubjectIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

// UpsertRating implements the RatingStore interface.
func (m *MockStore) UpsertRating(ctx context.Context, rec schema.PeerRatingRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// ListRatings implements the RatingStore interface.
func (m *MockStore) ListRatings(ctx context.Context, subjectID, metricKey string) ([]schema.PeerRatingRecord, error) {
	args := m.Called(ctx, subjectID, metricKey)
	recs, _ := args.Get(0).([]schema.PeerRatingRecord)
	return recs, args.Error(1)
}

// ListAllRatings implements the Exporter interface.
func (m *MockStore) ListAllRatings(ctx context.Context) ([]schema.PeerRatingRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]schema.PeerRatingRecord)
	return recs, args.Error(1)
}

// ListSubjectScores implements the Exporter interface.
func (m *MockStore) ListSubjectScores(ctx context.Context) ([]schema.SubjectScoreRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]schema.SubjectScoreRecord)
	return recs, args.Error(1)
}

// GetStatus implements the Store interface.
func (m *MockStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Clear implements the Store interface.
func (m *MockStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close implements the Store interface.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
