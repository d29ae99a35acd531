package iocache

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

func newSQLiteCache(t *testing.T) *SQLScoreCache {
	t.Helper()
	cache, err := NewSQLScoreCache(scoreCacheTable, schema.SQLiteBackend, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestScoreCaches(t *testing.T) {
	ctx := context.Background()
	caches := map[string]contract.ScoreCache{
		"memory": NewMemoryScoreCache(),
		"sqlite": newSQLiteCache(t),
	}
	for name, cache := range caches {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := cache.Get(ctx, "missing")
			assert.ErrorIs(t, err, schema.ErrCacheMiss)

			require.NoError(t, cache.Set(ctx, "s1", []byte(`{"overall_score":50}`), 1, 1000))
			require.NoError(t, cache.Set(ctx, "s1", []byte(`{"overall_score":60}`), 2, 2000))
			require.NoError(t, cache.Set(ctx, "s2", []byte(`{}`), 1, 500))

			value, version, ts, err := cache.Get(ctx, "s1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"overall_score":60}`, string(value))
			assert.Equal(t, 2, version)
			assert.Equal(t, int64(2000), ts)

			status, err := cache.GetStatus(ctx)
			require.NoError(t, err)
			assert.True(t, status.Connected)
			assert.Equal(t, 2, status.TotalEntries)
			assert.Equal(t, time.Unix(2000, 0), status.LastEntryTime)
			assert.Equal(t, time.Unix(500, 0), status.OldestEntryTime)

			require.NoError(t, cache.Delete(ctx, "s2"))
			_, _, _, err = cache.Get(ctx, "s2")
			assert.ErrorIs(t, err, schema.ErrCacheMiss)

			require.NoError(t, cache.Clear(ctx))
			_, _, _, err = cache.Get(ctx, "s1")
			assert.ErrorIs(t, err, schema.ErrCacheMiss)
		})
	}
}

func TestNoneScoreCache(t *testing.T) {
	ctx := context.Background()
	cache, err := NewSQLScoreCache(scoreCacheTable, schema.NoneBackend, "")
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "s1", []byte("x"), 1, 1))
	_, _, _, err = cache.Get(ctx, "s1")
	assert.ErrorIs(t, err, schema.ErrCacheMiss)

	status, err := cache.GetStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, cache.Close())
}

func TestNewSQLScoreCacheRejectsBadTable(t *testing.T) {
	_, err := NewSQLScoreCache("scores; DROP TABLE x", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)
}

func TestMemoryScoreCacheCopies(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryScoreCache()
	value := []byte("abc")
	require.NoError(t, cache.Set(ctx, "k", value, 1, 1))
	value[0] = 'z'

	got, _, _, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestCreateTableQueries(t *testing.T) {
	tests := []struct {
		backend  schema.DatabaseBackend
		contains string
	}{
		{schema.SQLiteBackend, `"ers_score_cache"`},
		{schema.MySQLBackend, "`ers_score_cache`"},
		{schema.PostgreSQLBackend, "BYTEA"},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			assert.Contains(t, getCreateTableQuery(scoreCacheTable, tt.backend), tt.contains)
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	assert.Equal(t, q, rebind(schema.SQLiteBackend, q))
	assert.Equal(t, q, rebind(schema.MySQLBackend, q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", rebind(schema.PostgreSQLBackend, q))
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`ers_subjects`", quoteTableName("ers_subjects", schema.MySQLBackend))
	assert.Equal(t, `"ers_subjects"`, quoteTableName("ers_subjects", schema.PostgreSQLBackend))
	assert.Equal(t, `"ers_subjects"`, quoteTableName("ers_subjects", schema.SQLiteBackend))
}

func TestNewScoreCache(t *testing.T) {
	cache, err := NewScoreCache(schema.MemoryBackend, "", 0)
	require.NoError(t, err)
	assert.IsType(t, &MemoryScoreCache{}, cache)

	_, err = NewScoreCache(schema.RedisBackend, "not-a-url", 0)
	assert.Error(t, err)

	_, err = NewScoreCache("bogus", "", 0)
	assert.Error(t, err)
}

func TestInitStores(t *testing.T) {
	t.Run("memory backends", func(t *testing.T) {
		initOnce = sync.Once{}  // Reset for test
		closeOnce = sync.Once{} // Reset for test

		err := InitStores(schema.MemoryBackend, "", schema.MemoryBackend, "", 0)
		require.NoError(t, err)
		assert.NotNil(t, Manager.GetStore())
		assert.NotNil(t, Manager.GetScoreCache())

		// Multiple initializations and closes are safe
		assert.NoError(t, InitStores(schema.MemoryBackend, "", schema.MemoryBackend, "", 0))
		CloseStores()
		CloseStores()
	})

	t.Run("sqlite store without cache", func(t *testing.T) {
		initOnce = sync.Once{}  // Reset for test
		closeOnce = sync.Once{} // Reset for test

		dbPath := filepath.Join(t.TempDir(), "store.db")
		err := InitStores(schema.SQLiteBackend, dbPath, "", "", 0)
		require.NoError(t, err)

		status, err := Manager.GetScoreCache().GetStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, string(schema.NoneBackend), status.Backend)
		CloseStores()
	})

	t.Run("invalid store backend", func(t *testing.T) {
		initOnce = sync.Once{}  // Reset for test
		closeOnce = sync.Once{} // Reset for test

		err := InitStores(schema.NoneBackend, "", "", "", 0)
		assert.Error(t, err)
	})
}

func TestClearStoreAndCache(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	cache := new(MockScoreCache)
	mgr := new(MockStoreManager)
	mgr.On("GetStore").Return(store)
	mgr.On("GetScoreCache").Return(cache)
	store.On("Clear", ctx).Return(nil)
	cache.On("Clear", ctx).Return(nil)

	require.NoError(t, ClearStore(ctx, mgr))
	store.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestClearStoreNotInitialized(t *testing.T) {
	mgr := new(MockStoreManager)
	mgr.On("GetStore").Return(nil)
	assert.Error(t, ClearStore(context.Background(), mgr))
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintStoreStatus(&buf, schema.StoreStatus{
		Backend:       "sqlite",
		Connected:     true,
		TotalSubjects: 3,
		TotalRatings:  0,
		TableSizes:    map[string]int64{"ers_subjects": 3, "ers_peer_ratings": 0},
	})
	out := buf.String()
	assert.Contains(t, out, "Store Backend: sqlite")
	assert.Contains(t, out, "Total Subjects: 3")
	assert.NotContains(t, out, "Last Rating")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("ers_peer_ratings")), bytes.Index(buf.Bytes(), []byte("ers_subjects")))

	buf.Reset()
	PrintCacheStatus(&buf, schema.CacheStatus{Backend: "redis", Connected: false})
	assert.Contains(t, buf.String(), "Connected: false")
	assert.NotContains(t, buf.String(), "Total Entries")
}

func TestExecuteStoreExport(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.PutSubject(ctx, sampleSubject()))
	require.NoError(t, store.UpsertRating(ctx, schema.PeerRatingRecord{SubjectID: "shop-1", MetricKey: "community_trust", RaterID: "r1", Rating: 7, Timestamp: time.Now()}))
	mgr := NewStoreManager(store, NewMemoryScoreCache())

	var buf bytes.Buffer
	base := filepath.Join(t.TempDir(), "export")
	require.NoError(t, ExecuteStoreExport(ctx, &buf, mgr, base))
	assert.Contains(t, buf.String(), "Exported 1 peer ratings")
	assert.Contains(t, buf.String(), "Exported 1 subject scores")
	assert.FileExists(t, base+".peer_ratings.parquet")
	assert.FileExists(t, base+".subject_scores.parquet")

	assert.Error(t, ExecuteStoreExport(ctx, &buf, mgr, ""))
	assert.Error(t, ExecuteStoreExport(ctx, &buf, NewStoreManager(NewMemoryStore(), nil), base), "empty store")
}

func TestMockScoreCacheMiss(t *testing.T) {
	ctx := context.Background()
	cache := new(MockScoreCache)
	cache.On("Get", ctx, "s1").Return(nil, 0, int64(0), schema.ErrCacheMiss)
	cache.On("Set", ctx, "s1", mock.Anything, 1, int64(5)).Return(nil)

	_, _, _, err := cache.Get(ctx, "s1")
	assert.ErrorIs(t, err, schema.ErrCacheMiss)
	assert.NoError(t, cache.Set(ctx, "s1", []byte("v"), 1, 5))
	cache.AssertExpectations(t)
}
