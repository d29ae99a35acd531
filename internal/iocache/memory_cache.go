package iocache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

type memoryCacheEntry struct {
	value     []byte
	version   int
	timestamp int64
}

// MemoryScoreCache keeps score entries in process memory.
type MemoryScoreCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

var _ contract.ScoreCache = &MemoryScoreCache{} // Compile-time check

// NewMemoryScoreCache returns an empty in-memory score cache.
func NewMemoryScoreCache() *MemoryScoreCache {
	return &MemoryScoreCache{entries: make(map[string]memoryCacheEntry)}
}

// Get implements the ScoreCache interface.
func (c *MemoryScoreCache) Get(_ context.Context, key string) ([]byte, int, int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, 0, 0, schema.ErrCacheMiss
	}
	return slices.Clone(e.value), e.version, e.timestamp, nil
}

// Set implements the ScoreCache interface.
func (c *MemoryScoreCache) Set(_ context.Context, key string, value []byte, version int, timestamp int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryCacheEntry{value: slices.Clone(value), version: version, timestamp: timestamp}
	return nil
}

// Delete implements the ScoreCache interface.
func (c *MemoryScoreCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Clear implements the ScoreCache interface.
func (c *MemoryScoreCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}

// GetStatus implements the ScoreCache interface.
func (c *MemoryScoreCache) GetStatus(_ context.Context) (schema.CacheStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status := schema.CacheStatus{
		Backend:      string(schema.MemoryBackend),
		Connected:    true,
		TotalEntries: len(c.entries),
	}
	var newest, oldest int64
	for _, e := range c.entries {
		if newest == 0 || e.timestamp > newest {
			newest = e.timestamp
		}
		if oldest == 0 || e.timestamp < oldest {
			oldest = e.timestamp
		}
		status.TableSizeBytes += int64(len(e.value))
	}
	if status.TotalEntries > 0 {
		status.LastEntryTime = time.Unix(newest, 0)
		status.OldestEntryTime = time.Unix(oldest, 0)
	}
	return status, nil
}

// Close implements the ScoreCache interface.
func (c *MemoryScoreCache) Close() error { return nil }
