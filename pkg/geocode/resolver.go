package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/cache"
	"github.com/sells-group/atlas-cli/internal/metrics"
	"github.com/sells-group/atlas-cli/internal/model"
)

const defaultAttemptDelay = 200 * time.Millisecond

// Resolver turns one site query into a resolved site: cache lookup first,
// then the candidate ladder against the provider, biased before global
// when a bias box is set. Exhausting every candidate yields an unresolved
// site, which is a terminal answer rather than an error, and is never
// cached.
type Resolver struct {
	store        *cache.Store
	provider     Provider
	bias         *geom.Bounds
	attemptDelay time.Duration
	clock        clockwork.Clock
	metrics      *metrics.Metrics
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithBias sets the bounding box tried before each global attempt.
func WithBias(b *geom.Bounds) ResolverOption {
	return func(r *Resolver) {
		r.bias = b
	}
}

// WithAttemptDelay sets the pause between consecutive provider attempts.
func WithAttemptDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.attemptDelay = d
	}
}

// WithResolverClock swaps the time source.
func WithResolverClock(c clockwork.Clock) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithResolverMetrics attaches Prometheus instrumentation.
func WithResolverMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a Resolver over the given cache and provider.
func NewResolver(store *cache.Store, provider Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:        store,
		provider:     provider,
		attemptDelay: defaultAttemptDelay,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// searchMode is one pass over a candidate: biased to the configured box,
// or global.
type searchMode struct {
	name string
	bias *geom.Bounds
}

func (r *Resolver) modes() []searchMode {
	if r.bias == nil {
		return []searchMode{{name: "global"}}
	}
	return []searchMode{{name: "biased", bias: r.bias}, {name: "global"}}
}

// Resolve resolves one site. forceRefresh skips the cache read but still
// writes the fresh result. Cancellation returns the site unresolved with
// the attempts made so far; nothing partial is cached.
func (r *Resolver) Resolve(ctx context.Context, site model.SiteQuery, forceRefresh bool) model.ResolvedSite {
	key := cache.Key(site)

	if !forceRefresh && key != "" {
		if entry, ok := r.store.Get(ctx, key); ok {
			r.metrics.RecordResolution("cached")
			return resolvedFromEntry(site, entry, true)
		}
	}

	if !r.provider.Available() {
		zap.L().Warn("geocode: provider unavailable", zap.String("provider", r.provider.Name()))
		r.metrics.RecordResolution("unresolved")
		return model.UnresolvedSite(site, nil)
	}

	var chain []string
	first := true
	for i, query := range Candidates(site) {
		for _, mode := range r.modes() {
			if !first {
				if err := sleepCtx(ctx, r.clock, r.attemptDelay); err != nil {
					r.metrics.RecordResolution("cancelled")
					return model.UnresolvedSite(site, chain)
				}
			}
			first = false
			chain = append(chain, attemptLabel(r.provider.Name(), i+1, mode.name))

			start := r.clock.Now()
			res, err := r.provider.Search(ctx, query, mode.bias)
			elapsed := r.clock.Since(start)
			if err != nil {
				r.metrics.ObserveProviderRequest("error", elapsed.Seconds())
				zap.L().Debug("geocode: attempt failed",
					zap.String("site", site.ID),
					zap.String("query", query),
					zap.Error(err),
				)
				if ctx.Err() != nil {
					r.metrics.RecordResolution("cancelled")
					return model.UnresolvedSite(site, chain)
				}
				continue
			}
			if !res.Matched {
				r.metrics.ObserveProviderRequest("no_match", elapsed.Seconds())
				continue
			}
			r.metrics.ObserveProviderRequest("match", elapsed.Seconds())

			entry := &model.CacheEntry{
				Lat:          res.Lat,
				Lng:          res.Lng,
				Confidence:   res.Confidence,
				Provider:     r.provider.Name(),
				PlaceID:      res.PlaceID,
				SourceChain:  chain,
				LastVerified: r.clock.Now().UTC(),
			}
			if res.ProvenanceURL != "" {
				entry.ProvenanceURLs = []string{res.ProvenanceURL}
			}
			r.store.Set(ctx, key, entry)

			zap.L().Debug("geocode: resolved",
				zap.String("site", site.ID),
				zap.String("query", query),
				zap.String("display_name", res.DisplayName),
				zap.Float64("confidence", res.Confidence),
			)
			r.metrics.RecordResolution("resolved")
			return resolvedFromEntry(site, entry, false)
		}
	}

	zap.L().Debug("geocode: exhausted candidates",
		zap.String("site", site.ID),
		zap.Int("attempts", len(chain)),
	)
	r.metrics.RecordResolution("unresolved")
	return model.UnresolvedSite(site, chain)
}

// attemptLabel names one provider attempt in a source chain, e.g.
// "nominatim/q2/global".
func attemptLabel(provider string, candidate int, mode string) string {
	return fmt.Sprintf("%s/q%d/%s", provider, candidate, mode)
}

// resolvedFromEntry projects a cache entry onto a site query.
func resolvedFromEntry(site model.SiteQuery, entry *model.CacheEntry, cached bool) model.ResolvedSite {
	lat, lng := entry.Lat, entry.Lng
	return model.ResolvedSite{
		SiteQuery:      site,
		Lat:            &lat,
		Lng:            &lng,
		Confidence:     entry.Confidence,
		Provider:       entry.Provider,
		SourceChain:    entry.SourceChain,
		LastVerified:   entry.LastVerified,
		ProvenanceURLs: entry.ProvenanceURLs,
		Cached:         cached,
	}
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
