package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Bias     BiasConfig     `yaml:"bias" mapstructure:"bias"`
	Seed     SeedConfig     `yaml:"seed" mapstructure:"seed"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the persisted cache tier.
type CacheConfig struct {
	// Driver selects the persisted tier: sqlite, postgres, or memory for
	// no persistence at all.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLDays     int    `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// ProviderConfig configures the geocoding provider.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Email       string  `yaml:"email" mapstructure:"email"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ResolverConfig configures per-site resolution behavior.
type ResolverConfig struct {
	AttemptDelayMs int     `yaml:"attempt_delay_ms" mapstructure:"attempt_delay_ms"`
	BaseConfidence float64 `yaml:"base_confidence" mapstructure:"base_confidence"`
	MinConfidence  float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxConfidence  float64 `yaml:"max_confidence" mapstructure:"max_confidence"`
}

// BatchConfig configures batch resolution.
type BatchConfig struct {
	ParallelLimit int `yaml:"parallel_limit" mapstructure:"parallel_limit"`
	PacingMs      int `yaml:"pacing_ms" mapstructure:"pacing_ms"`
}

// BiasConfig is the optional bounding box tried before global searches.
type BiasConfig struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	MinLon  float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MinLat  float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLon  float64 `yaml:"max_lon" mapstructure:"max_lon"`
	MaxLat  float64 `yaml:"max_lat" mapstructure:"max_lat"`
}

// SeedConfig configures manual coordinate seeding.
type SeedConfig struct {
	Confidence float64 `yaml:"confidence" mapstructure:"confidence"`
}

// FetchConfig configures remote site-file downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "atlas-cache.db")
	v.SetDefault("cache.ttl_days", 180)
	v.SetDefault("provider.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("provider.user_agent", "atlas-cli/1.0 (+https://github.com/sells-group/atlas-cli)")
	v.SetDefault("provider.rate_limit", 1.0)
	v.SetDefault("provider.timeout_secs", 30)
	v.SetDefault("resolver.attempt_delay_ms", 200)
	v.SetDefault("resolver.base_confidence", 0.7)
	v.SetDefault("resolver.min_confidence", 0.5)
	v.SetDefault("resolver.max_confidence", 0.95)
	v.SetDefault("batch.parallel_limit", 1)
	v.SetDefault("batch.pacing_ms", 250)
	v.SetDefault("bias.enabled", false)
	v.SetDefault("seed.confidence", 0.95)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given mode: "run" for CLI
// resolution commands, "serve" for the HTTP server.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			problems = append(problems, "cache.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			problems = append(problems, "cache.database_url is required for the postgres driver")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not one of sqlite, postgres, memory", c.Cache.Driver))
	}
	if c.Cache.TTLDays <= 0 {
		problems = append(problems, "cache.ttl_days must be > 0")
	}

	if c.Provider.BaseURL == "" {
		problems = append(problems, "provider.base_url is required")
	}
	if c.Provider.RateLimit <= 0 {
		problems = append(problems, "provider.rate_limit must be > 0")
	}
	if c.Provider.TimeoutSecs <= 0 {
		problems = append(problems, "provider.timeout_secs must be > 0")
	}

	r := c.Resolver
	if r.MinConfidence < 0 || r.MaxConfidence > 1 || r.MinConfidence > r.MaxConfidence {
		problems = append(problems, "resolver confidence bounds must satisfy 0 <= min <= max <= 1")
	} else if r.BaseConfidence < r.MinConfidence || r.BaseConfidence > r.MaxConfidence {
		problems = append(problems, "resolver.base_confidence must lie within the min/max bounds")
	}
	if r.AttemptDelayMs < 0 {
		problems = append(problems, "resolver.attempt_delay_ms must be >= 0")
	}

	if c.Batch.ParallelLimit < 1 || c.Batch.ParallelLimit > 50 {
		problems = append(problems, "batch.parallel_limit must be between 1 and 50")
	}
	if c.Batch.PacingMs < 0 {
		problems = append(problems, "batch.pacing_ms must be >= 0")
	}

	if c.Bias.Enabled {
		b := c.Bias
		if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
			problems = append(problems, "bias box must have min_lon < max_lon and min_lat < max_lat")
		}
		if b.MinLon < -180 || b.MaxLon > 180 || b.MinLat < -90 || b.MaxLat > 90 {
			problems = append(problems, "bias box must lie within [-180, 180] x [-90, 90]")
		}
	}

	if c.Seed.Confidence < 0.9 || c.Seed.Confidence > 1 {
		problems = append(problems, "seed.confidence must be between 0.9 and 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
