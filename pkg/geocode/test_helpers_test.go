package geocode

import (
	"context"
	"sync"

	"github.com/twpayne/go-geom"
	"golang.org/x/time/rate"

	"github.com/sells-group/atlas-cli/internal/cache"
)

// newTestLimiter creates a rate limiter that effectively does not limit.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// providerCall records one Search invocation.
type providerCall struct {
	query  string
	biased bool
}

// fakeProvider is a scripted Provider for resolver and coordinator tests.
// respond decides the answer per query; the default is a universal
// no-match.
type fakeProvider struct {
	name        string
	unavailable bool
	respond     func(query string, bias *geom.Bounds) (*ProviderResult, error)

	mu    sync.Mutex
	calls []providerCall
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{name: "nominatim"}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Available() bool { return !f.unavailable }

func (f *fakeProvider) Search(_ context.Context, query string, bias *geom.Bounds) (*ProviderResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, providerCall{query: query, biased: bias != nil})
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(query, bias)
	}
	return &ProviderResult{Matched: false}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) recorded() []providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]providerCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// matchAll responds to every query with the same coordinates.
func matchAll(lat, lng, confidence float64) func(string, *geom.Bounds) (*ProviderResult, error) {
	return func(string, *geom.Bounds) (*ProviderResult, error) {
		return &ProviderResult{
			Lat:        lat,
			Lng:        lng,
			Confidence: confidence,
			Matched:    true,
		}, nil
	}
}

func newTestStore() *cache.Store {
	return cache.NewStore()
}

// newTestResolver wires a resolver with no inter-attempt delay so tests
// run instantly.
func newTestResolver(store *cache.Store, provider Provider, opts ...ResolverOption) *Resolver {
	return NewResolver(store, provider, append([]ResolverOption{WithAttemptDelay(0)}, opts...)...)
}
