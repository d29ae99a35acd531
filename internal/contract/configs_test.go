package contract

import (
	"testing"
	"time"

	"github.com/huangsam/ers/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRawInput() *ConfigRawInput {
	return &ConfigRawInput{
		Limit:        10,
		Workers:      4,
		Precision:    2,
		Output:       "text",
		Color:        "yes",
		StoreBackend: "sqlite",
		CacheBackend: "sqlite",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{
			name:        "zero limit",
			mutate:      func(in *ConfigRawInput) { in.Limit = 0 },
			expectError: "limit must be greater than 0",
		},
		{
			name:        "limit too large",
			mutate:      func(in *ConfigRawInput) { in.Limit = MaxResultLimit + 1 },
			expectError: "cannot exceed",
		},
		{
			name:        "zero workers",
			mutate:      func(in *ConfigRawInput) { in.Workers = 0 },
			expectError: "workers must be greater than 0",
		},
		{
			name:        "bad precision",
			mutate:      func(in *ConfigRawInput) { in.Precision = 7 },
			expectError: "precision must be between 1 and 4",
		},
		{
			name:        "bad output",
			mutate:      func(in *ConfigRawInput) { in.Output = "xml" },
			expectError: "invalid output format",
		},
		{
			name:        "bad color",
			mutate:      func(in *ConfigRawInput) { in.Color = "rainbow" },
			expectError: "invalid --color value",
		},
		{
			name:        "redis is cache only",
			mutate:      func(in *ConfigRawInput) { in.StoreBackend = "redis" },
			expectError: "invalid store backend",
		},
		{
			name: "redis cache with url",
			mutate: func(in *ConfigRawInput) {
				in.CacheBackend = "redis"
				in.CacheDBConnect = "redis://localhost:6379/0"
			},
		},
		{
			name:        "redis cache without url",
			mutate:      func(in *ConfigRawInput) { in.CacheBackend = "redis" },
			expectError: "connection string is required",
		},
		{
			name:        "bad cache ttl",
			mutate:      func(in *ConfigRawInput) { in.CacheTTL = "soon" },
			expectError: "invalid cache ttl",
		},
		{
			name:        "negative cache ttl",
			mutate:      func(in *ConfigRawInput) { in.CacheTTL = "-5m" },
			expectError: "cache ttl must be >= 0",
		},
		{
			name: "negative category weight",
			mutate: func(in *ConfigRawInput) {
				in.Weights.Category = map[string]map[string]float64{"food": {"durability": -1}}
			},
			expectError: "weights.category.food",
		},
		{
			name:        "unknown size in weights",
			mutate:      func(in *ConfigRawInput) { in.Weights.Size = map[string]map[string]float64{"huge": {"durability": 2}} },
			expectError: "invalid business size 'huge'",
		},
		{
			name:        "extra metric with bad kind",
			mutate:      func(in *ConfigRawInput) { in.Metrics = []MetricRawInput{{Key: "x", Kind: "ratio"}} },
			expectError: "invalid kind 'ratio'",
		},
		{
			name:        "extra metric without key",
			mutate:      func(in *ConfigRawInput) { in.Metrics = []MetricRawInput{{Kind: "boolean"}} },
			expectError: "key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRawInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestProcessAndValidateFields(t *testing.T) {
	input := validRawInput()
	input.Output = "JSON"
	input.StoreBackend = "Memory"
	input.CacheBackend = "none"
	input.Verbose = true
	input.CacheTTL = "90s"
	input.Weights = WeightsRawInput{
		Category: map[string]map[string]float64{"Food": {"local_sourcing_pct": 2}},
		Size:     map[string]map[string]float64{"micro": {"certifications": 0.3}},
	}
	input.Metrics = []MetricRawInput{{Key: " seasonal_menu ", Label: "Seasonal menu", Kind: "boolean"}}

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, schema.JSONOut, cfg.Output)
	assert.Equal(t, schema.MemoryBackend, cfg.StoreBackend)
	assert.Equal(t, schema.NoneBackend, cfg.CacheBackend)
	assert.True(t, cfg.UseColors)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 2.0, cfg.CategoryWeights["food"]["local_sourcing_pct"])
	assert.Equal(t, 0.3, cfg.SizeWeights[schema.MicroSize]["certifications"])
	require.Len(t, cfg.ExtraMetrics, 1)
	assert.Equal(t, "seasonal_menu", cfg.ExtraMetrics[0].Key)
	assert.Equal(t, schema.BooleanKind, cfg.ExtraMetrics[0].Kind)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{
		Workers:         2,
		CategoryWeights: map[string]map[string]float64{"food": {"a": 1.5}},
		SizeWeights:     map[schema.BusinessSize]map[string]float64{schema.LargeSize: {"a": 1.2}},
		ExtraMetrics:    []schema.MetricDefinition{{Key: "a", Kind: schema.BooleanKind}},
	}
	clone := cfg.Clone()
	clone.CategoryWeights["food"]["a"] = 9
	clone.SizeWeights[schema.LargeSize]["a"] = 9
	clone.ExtraMetrics[0].Key = "b"

	assert.Equal(t, 1.5, cfg.CategoryWeights["food"]["a"])
	assert.Equal(t, 1.2, cfg.SizeWeights[schema.LargeSize]["a"])
	assert.Equal(t, "a", cfg.ExtraMetrics[0].Key)
	assert.Equal(t, 2, clone.Workers)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		connStr string
		wantErr bool
	}{
		{"sqlite empty", schema.SQLiteBackend, "", false},
		{"memory empty", schema.MemoryBackend, "", false},
		{"none empty", schema.NoneBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "user:pass@tcp(localhost:3306)/ers", false},
		{"mysql empty", schema.MySQLBackend, "", true},
		{"mysql no tcp", schema.MySQLBackend, "user:pass@localhost/ers", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost port=5432 user=postgres dbname=ers", false},
		{"postgres no dbname", schema.PostgreSQLBackend, "host=localhost", true},
		{"redis valid", schema.RedisBackend, "redis://localhost:6379/0", false},
		{"rediss valid", schema.RedisBackend, "rediss://user:pw@cache:6380/1", false},
		{"redis bad scheme", schema.RedisBackend, "localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessProfilingConfig(t *testing.T) {
	profile := &ProfileConfig{}
	require.NoError(t, ProcessProfilingConfig(profile, ""))
	assert.False(t, profile.Enabled)

	require.NoError(t, ProcessProfilingConfig(profile, "ers"))
	assert.True(t, profile.Enabled)
	assert.Equal(t, "ers", profile.Prefix)
}
