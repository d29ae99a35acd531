package iocache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// NewStore opens the subject and rating store for a backend.
func NewStore(backend schema.DatabaseBackend, connStr string) (contract.Store, error) {
	switch backend {
	case schema.MemoryBackend:
		return NewMemoryStore(), nil
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return NewSQLStore(backend, connStr)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}

// NewScoreCache opens the score cache for a backend.
func NewScoreCache(backend schema.DatabaseBackend, connStr string, ttl time.Duration) (contract.ScoreCache, error) {
	switch backend {
	case schema.MemoryBackend:
		return NewMemoryScoreCache(), nil
	case schema.RedisBackend:
		return NewRedisScoreCache(connStr, ttl)
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend, schema.NoneBackend:
		return NewSQLScoreCache(scoreCacheTable, backend, connStr)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}

// InitStores initializes the global manager with the store and score cache.
// An empty cache backend disables caching. The ttl only applies to redis.
func InitStores(storeBackend schema.DatabaseBackend, storeConnStr string, cacheBackend schema.DatabaseBackend, cacheConnStr string, ttl time.Duration) error {
	var initErr error

	initOnce.Do(func() {
		store, err := NewStore(storeBackend, storeConnStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize store: %w", err)
			return
		}

		if cacheBackend == "" {
			cacheBackend = schema.NoneBackend
		}
		cache, err := NewScoreCache(cacheBackend, cacheConnStr, ttl)
		if err != nil {
			_ = store.Close()
			initErr = fmt.Errorf("failed to initialize score cache: %w", err)
			return
		}

		Manager.Lock()
		defer Manager.Unlock()
		Manager.store = store
		Manager.cache = cache
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.store != nil {
			_ = Manager.store.Close()
		}
		if Manager.cache != nil {
			_ = Manager.cache.Close()
		}
	})
}

// ClearStore removes every subject and rating from the managed store.
func ClearStore(ctx context.Context, mgr contract.StoreManager) error {
	store := mgr.GetStore()
	if store == nil {
		return fmt.Errorf("store is not initialized")
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return ClearCache(ctx, mgr)
}

// ClearCache removes every cached score from the managed cache.
func ClearCache(ctx context.Context, mgr contract.StoreManager) error {
	cache := mgr.GetScoreCache()
	if cache == nil {
		return nil
	}
	if err := cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear score cache: %w", err)
	}
	return nil
}
