package iocache

import (
	"sync"

	"github.com/huangsam/ers/internal/contract"
)

// StoreManager holds the subject store and the score cache.
type StoreManager struct {
	sync.RWMutex // Protects the backend pointers during initialization
	store        contract.Store
	cache        contract.ScoreCache
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// NewStoreManager wraps already opened backends.
func NewStoreManager(store contract.Store, cache contract.ScoreCache) *StoreManager {
	return &StoreManager{store: store, cache: cache}
}

// GetStore returns the subject and rating store.
func (mgr *StoreManager) GetStore() contract.Store {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.store
}

// GetScoreCache returns the score cache.
func (mgr *StoreManager) GetScoreCache() contract.ScoreCache {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.cache
}
