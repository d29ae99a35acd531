package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/internal/iocache"
	"github.com/huangsam/ers/schema"
)

// cacheSetup loads minimal configuration needed for cache operations.
// The store is kept in memory so cache commands never touch it.
func cacheSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, connStr, err := backendFromViper("cache-backend", "cache-db-connect")
	if err != nil {
		return err
	}
	if _, ok := schema.ValidCacheBackends[backend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'", backend)
	}

	if err := iocache.InitStores(schema.MemoryBackend, "", backend, connStr, 0); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// cacheCmd focused on score cache management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the score cache",
	Long: `Manage the cache of computed scores and explanations.

Explanations are cached per subject after every recompute and served by
'ers explain'. Entries written by an older version are ignored and recomputed.

Supported backends: SQLite (default), MySQL, PostgreSQL, Redis, Memory, or None

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached scores

Examples:
  # Check cache status
  ers cache status

  # Use Redis for the cache
  ERS_CACHE_BACKEND=redis ERS_CACHE_DB_CONNECT=redis://localhost:6379/0 ers cache status`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached scores",
	Long: `Delete all cached scores from the configured backend.
Stored subjects and ratings are untouched; explanations are recomputed on demand.

Examples:
  ers cache clear`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearCache(rootCtx, storeManager); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show detailed information about the score cache.

Displays:
- Backend type and connection status
- Total number of cached entries
- Last and oldest cache entry timestamps
- Cache size`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := storeManager.GetScoreCache().GetStatus(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
	},
}
