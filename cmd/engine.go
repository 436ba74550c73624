package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/atlas-cli/internal/cache"
	"github.com/sells-group/atlas-cli/internal/fetcher"
	"github.com/sells-group/atlas-cli/internal/metrics"
	"github.com/sells-group/atlas-cli/internal/sitefile"
	"github.com/sells-group/atlas-cli/pkg/geocode"
)

// engineEnv holds the initialized cache store, resolver, and batch
// coordinator shared by the resolve/export/seed/cache/serve commands.
type engineEnv struct {
	Store       *cache.Store
	Resolver    *geocode.Resolver
	Coordinator *geocode.Coordinator
	Metrics     *metrics.Metrics

	pool *pgxpool.Pool
}

// Close releases the cache tiers and database pool.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// initEngine validates config for the given mode and wires the cache
// store, provider, resolver, and coordinator. Callers should defer
// env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	m := metrics.NewMetrics()

	storeOpts := []cache.Option{
		cache.WithTTL(time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour),
		cache.WithMetrics(m),
	}

	var pool *pgxpool.Pool
	switch cfg.Cache.Driver {
	case "memory":
		// Fast tier only; nothing survives the process.
	case "sqlite":
		tier, err := cache.NewSQLiteTier(ctx, cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, cache.WithPersistedTier(tier))
	case "postgres":
		var err error
		pool, err = pgxpool.New(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect postgres")
		}
		tier := cache.NewPostgresTier(pool)
		if err := tier.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		storeOpts = append(storeOpts, cache.WithPersistedTier(tier))
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}

	store := cache.NewStore(storeOpts...)

	provider := geocode.NewNominatim(
		geocode.WithBaseURL(cfg.Provider.BaseURL),
		geocode.WithEmail(cfg.Provider.Email),
		geocode.WithUserAgent(cfg.Provider.UserAgent),
		geocode.WithRateLimit(cfg.Provider.RateLimit),
		geocode.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
		}),
		geocode.WithConfidenceBounds(
			cfg.Resolver.BaseConfidence,
			cfg.Resolver.MinConfidence,
			cfg.Resolver.MaxConfidence,
		),
	)

	resolverOpts := []geocode.ResolverOption{
		geocode.WithAttemptDelay(time.Duration(cfg.Resolver.AttemptDelayMs) * time.Millisecond),
		geocode.WithResolverMetrics(m),
	}
	if cfg.Bias.Enabled {
		bias := geom.NewBounds(geom.XY).Set(
			cfg.Bias.MinLon, cfg.Bias.MinLat,
			cfg.Bias.MaxLon, cfg.Bias.MaxLat,
		)
		resolverOpts = append(resolverOpts, geocode.WithBias(bias))
	}
	resolver := geocode.NewResolver(store, provider, resolverOpts...)

	coord := geocode.NewCoordinator(store, resolver,
		geocode.WithParallelLimit(cfg.Batch.ParallelLimit),
		geocode.WithPacing(time.Duration(cfg.Batch.PacingMs)*time.Millisecond),
		geocode.WithCoordinatorMetrics(m),
	)

	return &engineEnv{
		Store:       store,
		Resolver:    resolver,
		Coordinator: coord,
		Metrics:     m,
		pool:        pool,
	}, nil
}

// sourceOptions builds the remote-fetch configuration for site files.
func sourceOptions() sitefile.SourceOptions {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	return sitefile.SourceOptions{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:    timeout,
			MaxRetries: cfg.Fetch.MaxRetries,
		}),
		FTP:     fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
		TempDir: cfg.Fetch.TempDir,
	}
}
