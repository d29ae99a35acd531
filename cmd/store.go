package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/internal/iocache"
	"github.com/huangsam/ers/schema"
)

// backendFromViper reads and validates one backend and its connection string.
func backendFromViper(backendKey, connKey string) (schema.DatabaseBackend, string, error) {
	backend := schema.DatabaseBackend(strings.ToLower(viper.GetString(backendKey)))
	connStr := viper.GetString(connKey)
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// storeSetup loads minimal configuration needed for store operations.
// This is used by commands that need storage access without full shared setup.
func storeSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	storeBackend, storeConn, err := backendFromViper("store-backend", "store-db-connect")
	if err != nil {
		return err
	}
	if _, ok := schema.ValidStoreBackends[storeBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'", storeBackend)
	}
	cacheBackend, cacheConn, err := backendFromViper("cache-backend", "cache-db-connect")
	if err != nil {
		return err
	}

	if err := iocache.InitStores(storeBackend, storeConn, cacheBackend, cacheConn, 0); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	cfg.StoreBackend = storeBackend
	cfg.StoreDBConnect = storeConn
	cfg.CacheBackend = cacheBackend
	cfg.CacheDBConnect = cacheConn
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// storeSetupWrapper wraps storeSetup to provide PreRunE for store commands.
func storeSetupWrapper(_ *cobra.Command, _ []string) error {
	return storeSetup()
}

// storeMigrateSetup loads minimal configuration needed for migrate operations.
// It does NOT initialize stores or create tables, allowing migrations to run on a fresh database.
func storeMigrateSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	backend, connStr, err := backendFromViper("store-backend", "store-db-connect")
	if err != nil {
		return err
	}
	switch backend {
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
	default:
		return fmt.Errorf("migrations are only supported for sqlite, mysql and postgresql (received %s)", backend)
	}
	cfg.StoreBackend = backend
	cfg.StoreDBConnect = connStr
	return nil
}

// storeCmd focused on management of subjects and peer ratings.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the subject and peer rating store",
	Long: `Manage the durable store that holds subjects, their metric values and peer ratings.

Supported backends: SQLite (default), MySQL, PostgreSQL, or Memory (process local)

Subcommands:
  status  - Show store statistics and connection info
  clear   - Remove every subject, rating and cached score
  export  - Export ratings and scores to Parquet files
  migrate - Run schema migrations

Examples:
  # Check store status
  ers store status

  # Use PostgreSQL (set connection string via env variable)
  ERS_STORE_BACKEND=postgresql ERS_STORE_DB_CONNECT="host=... dbname=ers" ers store status`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display store statistics and connection details",
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := storeManager.GetStore().GetStatus(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		iocache.PrintStoreStatus(os.Stdout, status)
	},
}

// storeClearCmd clears the store and the score cache.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored subject, rating and cached score",
	Long: `Delete all subjects, peer ratings and cached scores from the configured backends.

This cannot be undone. Export first if you need the data.

Examples:
  ers store clear`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearStore(rootCtx, storeManager); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
		fmt.Println("Store cleared successfully.")
	},
}

// storeExportCmd exports stored data to Parquet files.
var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export peer ratings and subject scores to Parquet for BI tools",
	Long: `Write every peer rating and every subject's latest score to Parquet files.

Two files are written next to --output-file:
  <output-file>.peer_ratings.parquet
  <output-file>.subject_scores.parquet

Examples:
  ers store export --output-file ers-data`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteStoreExport(rootCtx, os.Stdout, storeManager, cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export store", err)
		}
	},
}

// storeMigrateCmd runs database migrations for the store.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the subject and rating store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  ers store migrate

  # Roll back every migration
  ers store migrate --target-version 0`,
	PreRunE: storeMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		start := time.Now()
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateStore(cfg.StoreBackend, cfg.StoreDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		fmt.Printf("Migrations applied in %v.\n", time.Since(start).Round(time.Millisecond))
	},
}
