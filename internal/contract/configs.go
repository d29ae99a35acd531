package contract

import (
	"fmt"
	"maps"
	"runtime"
	"strings"
	"time"

	"github.com/huangsam/ers/schema"
)

// Default values for configuration.
const (
	DefaultResultLimit = 25
	MaxResultLimit     = 1000
	DefaultPrecision   = 2
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// WeightsRawInput holds relevance weight overrides from the YAML config file.
//
//	weights:
//	  category:
//	    food: {local_sourcing_pct: 1.8}
//	  size:
//	    micro: {certifications: 0.4}
type WeightsRawInput struct {
	Category map[string]map[string]float64 `mapstructure:"category"`
	Size     map[string]map[string]float64 `mapstructure:"size"`
}

// MetricRawInput is one extra metric definition from the YAML config file.
type MetricRawInput struct {
	Key   string `mapstructure:"key"`
	Label string `mapstructure:"label"`
	Kind  string `mapstructure:"kind"`
}

// Config holds the runtime configuration.
// This struct is the "final, validated" config.
type Config struct {
	ResultLimit int
	Workers     int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	Width       int // Terminal width override (0 = auto-detect)
	UseColors   bool
	Verbose     bool

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string        // Please use env var as this is plaintext
	CacheTTL       time.Duration // Expiry of cached scores (redis only, 0 = never)

	// CategoryWeights is a mapping of [category][metricKey] = multiplier, merged over the defaults.
	CategoryWeights map[string]map[string]float64

	// SizeWeights is a mapping of [businessSize][metricKey] = multiplier, merged over the defaults.
	SizeWeights map[schema.BusinessSize]map[string]float64

	// ExtraMetrics are registered next to the default catalog.
	ExtraMetrics []schema.MetricDefinition
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	OutputFile     string `mapstructure:"output-file"`
	Limit          int    `mapstructure:"limit"`
	Workers        int    `mapstructure:"workers"`
	Precision      int    `mapstructure:"precision"`
	Output         string `mapstructure:"output"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	Verbose        bool   `mapstructure:"verbose"`
	StoreBackend   string `mapstructure:"store-backend"`
	StoreDBConnect string `mapstructure:"store-db-connect"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	CacheTTL       string `mapstructure:"cache-ttl"`

	// --- Custom weights from config file ---
	Weights WeightsRawInput `mapstructure:"weights"`

	// --- Extra metric definitions from config file ---
	Metrics []MetricRawInput `mapstructure:"metrics"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.CategoryWeights != nil {
		clone.CategoryWeights = make(map[string]map[string]float64, len(c.CategoryWeights))
		for cat, w := range c.CategoryWeights {
			clone.CategoryWeights[cat] = maps.Clone(w)
		}
	}
	if c.SizeWeights != nil {
		clone.SizeWeights = make(map[schema.BusinessSize]map[string]float64, len(c.SizeWeights))
		for sz, w := range c.SizeWeights {
			clone.SizeWeights[sz] = maps.Clone(w)
		}
	}
	if c.ExtraMetrics != nil {
		clone.ExtraMetrics = append([]schema.MetricDefinition(nil), c.ExtraMetrics...)
	}
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processCustomWeights(cfg, input); err != nil {
		return err
	}
	if err := processExtraMetrics(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of connection strings
// for the MySQL, PostgreSQL and Redis backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.MemoryBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	case schema.RedisBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.HasPrefix(connStr, "redis://") && !strings.HasPrefix(connStr, "rediss://") {
			return fmt.Errorf("Redis connection string must start with 'redis://' or 'rediss://'")
		}
	}
	return nil
}

// validateBackendConfigs validates store and cache backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Store Backend Validation ---
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if _, ok := schema.ValidStoreBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, memory", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	if err := ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return err
	}

	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidCacheBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, redis, memory, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect

	cfg.CacheTTL = 0
	if ttl := strings.TrimSpace(input.CacheTTL); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid cache ttl '%s': %w", input.CacheTTL, err)
		}
		if d < 0 {
			return fmt.Errorf("cache ttl must be >= 0 (received %s)", input.CacheTTL)
		}
		cfg.CacheTTL = d
	}
	return ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect)
}

// validateSimpleInputs processes and validates all non-backend fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Verbose = input.Verbose

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. ResultLimit Validation ---
	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 2. Workers Validation ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 3. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 4 {
		return fmt.Errorf("precision must be between 1 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", input.Output)
	}
	return nil
}

// processCustomWeights copies the weight overrides into the config after basic checks.
// Metric keys are checked against the catalog when the engine is built.
func processCustomWeights(cfg *Config, input *ConfigRawInput) error {
	cfg.CategoryWeights = make(map[string]map[string]float64, len(input.Weights.Category))
	for cat, weights := range input.Weights.Category {
		if err := checkMultipliers(weights); err != nil {
			return fmt.Errorf("weights.category.%s: %w", cat, err)
		}
		cfg.CategoryWeights[strings.ToLower(cat)] = maps.Clone(weights)
	}

	cfg.SizeWeights = make(map[schema.BusinessSize]map[string]float64, len(input.Weights.Size))
	for sz, weights := range input.Weights.Size {
		size := schema.BusinessSize(strings.ToLower(sz))
		if _, ok := schema.ValidBusinessSizes[size]; !ok {
			return fmt.Errorf("invalid business size '%s' in weights.size. must be micro, small, medium, large", sz)
		}
		if err := checkMultipliers(weights); err != nil {
			return fmt.Errorf("weights.size.%s: %w", sz, err)
		}
		cfg.SizeWeights[size] = maps.Clone(weights)
	}
	return nil
}

func checkMultipliers(weights map[string]float64) error {
	for metric, w := range weights {
		if w < 0 {
			return fmt.Errorf("weight for %s must be >= 0 (received %.3f)", metric, w)
		}
	}
	return nil
}

// processExtraMetrics validates extra metric definitions from the config file.
func processExtraMetrics(cfg *Config, input *ConfigRawInput) error {
	cfg.ExtraMetrics = nil
	for i, m := range input.Metrics {
		key := strings.TrimSpace(m.Key)
		if key == "" {
			return fmt.Errorf("metrics[%d]: key is required", i)
		}
		kind := schema.MetricKind(m.Kind)
		if _, ok := schema.ValidMetricKinds[kind]; !ok {
			return fmt.Errorf("metrics[%d]: invalid kind '%s'. must be boolean, bounded0to10, percentage, peerRated, structuredList", i, m.Kind)
		}
		cfg.ExtraMetrics = append(cfg.ExtraMetrics, schema.MetricDefinition{Key: key, Label: m.Label, Kind: kind})
	}
	return nil
}

// ProcessProfilingConfig enables profiling when a file prefix is given.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}
