// Package geocode resolves site queries to coordinates: a query-relaxation
// resolver over a rate-limited provider, backed by a TTL cache.
package geocode

import (
	"context"

	"github.com/twpayne/go-geom"
)

// ProviderResult is one provider answer for one query string. It is
// transient: the resolver folds it into a cache entry or discards it.
type ProviderResult struct {
	Lat           float64
	Lng           float64
	Confidence    float64
	PlaceID       string
	DisplayName   string
	ProvenanceURL string
	Matched       bool
}

// Provider answers free-text location queries. A query that matches
// nothing returns Matched false with a nil error; errors are reserved for
// transport and decoding failures. A non-nil bias restricts the search to
// that bounding box.
type Provider interface {
	// Name identifies the provider in source chains and cache entries.
	Name() string

	// Available reports whether the provider can serve requests.
	Available() bool

	// Search runs one query, returning at most one result.
	Search(ctx context.Context, query string, bias *geom.Bounds) (*ProviderResult, error)
}
