package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp runs the test from an empty directory so no config.yaml is
// picked up accidentally.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "atlas-cache.db", cfg.Cache.Path)
	assert.Equal(t, 180, cfg.Cache.TTLDays)
	assert.Equal(t, "https://nominatim.openstreetmap.org/search", cfg.Provider.BaseURL)
	assert.InDelta(t, 1.0, cfg.Provider.RateLimit, 0.001)
	assert.Equal(t, 30, cfg.Provider.TimeoutSecs)
	assert.Equal(t, 200, cfg.Resolver.AttemptDelayMs)
	assert.InDelta(t, 0.7, cfg.Resolver.BaseConfidence, 0.001)
	assert.InDelta(t, 0.5, cfg.Resolver.MinConfidence, 0.001)
	assert.InDelta(t, 0.95, cfg.Resolver.MaxConfidence, 0.001)
	assert.Equal(t, 1, cfg.Batch.ParallelLimit)
	assert.Equal(t, 250, cfg.Batch.PacingMs)
	assert.False(t, cfg.Bias.Enabled)
	assert.InDelta(t, 0.95, cfg.Seed.Confidence, 0.001)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: postgres
  database_url: postgres://localhost/atlas
  ttl_days: 30
provider:
  email: ops@example.com
batch:
  parallel_limit: 4
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "postgres://localhost/atlas", cfg.Cache.DatabaseURL)
	assert.Equal(t, 30, cfg.Cache.TTLDays)
	assert.Equal(t, "ops@example.com", cfg.Provider.Email)
	assert.Equal(t, 4, cfg.Batch.ParallelLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 250, cfg.Batch.PacingMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ATLAS_CACHE_DRIVER", "postgres")
	t.Setenv("ATLAS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ATLAS_BATCH_PARALLEL_LIMIT", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Batch.ParallelLimit)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults mirrors the Load defaults for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Cache.Driver = "sqlite"
	cfg.Cache.Path = "atlas-cache.db"
	cfg.Cache.TTLDays = 180
	cfg.Provider.BaseURL = "https://nominatim.openstreetmap.org/search"
	cfg.Provider.RateLimit = 1.0
	cfg.Provider.TimeoutSecs = 30
	cfg.Resolver.AttemptDelayMs = 200
	cfg.Resolver.BaseConfidence = 0.7
	cfg.Resolver.MinConfidence = 0.5
	cfg.Resolver.MaxConfidence = 0.95
	cfg.Batch.ParallelLimit = 1
	cfg.Batch.PacingMs = 250
	cfg.Seed.Confidence = 0.95
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRun_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("nope")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateCacheDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.Driver = "redis"
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.driver")

	cfg = validDefaults()
	cfg.Cache.Driver = "postgres"
	err = cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.database_url is required")

	cfg.Cache.DatabaseURL = "postgres://localhost/atlas"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	assert.NoError(t, cfg.Validate("run"), "port is only checked in serve mode")
}

func TestValidateParallelLimitBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.ParallelLimit = 0
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parallel_limit must be between 1 and 50")

	cfg.Batch.ParallelLimit = 51
	assert.Error(t, cfg.Validate("run"))

	cfg.Batch.ParallelLimit = 50
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateConfidenceBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Resolver.MinConfidence = 0.8
	cfg.Resolver.MaxConfidence = 0.6

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "confidence bounds")

	cfg = validDefaults()
	cfg.Resolver.BaseConfidence = 0.2
	err = cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "base_confidence")
}

func TestValidateBiasBox(t *testing.T) {
	cfg := validDefaults()
	cfg.Bias.Enabled = true
	cfg.Bias.MinLon, cfg.Bias.MinLat = -91.5, 36.9
	cfg.Bias.MaxLon, cfg.Bias.MaxLat = -87.5, 42.5
	assert.NoError(t, cfg.Validate("run"))

	cfg.Bias.MaxLon = -92.0
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bias box")

	cfg.Bias.MaxLon = 181.0
	assert.Error(t, cfg.Validate("run"))
}

func TestValidateSeedConfidence(t *testing.T) {
	cfg := validDefaults()
	cfg.Seed.Confidence = 0.5

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "seed.confidence")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.TTLDays = 0
	cfg.Provider.RateLimit = 0
	cfg.Batch.ParallelLimit = 0

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttl_days")
	assert.Contains(t, err.Error(), "rate_limit")
	assert.Contains(t, err.Error(), "parallel_limit")
}
