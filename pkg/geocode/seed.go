package geocode

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/cache"
	"github.com/sells-group/atlas-cli/internal/model"
)

const (
	defaultSeedConfidence = 0.95
	minSeedConfidence     = 0.9
)

// SeedOptions carries the optional fields of a manual seed.
type SeedOptions struct {
	// Confidence defaults to 0.95. Values below 0.9 are rejected: manual
	// coordinates are only worth seeding when they are trusted.
	Confidence     float64
	PlaceID        string
	ProvenanceURLs []string
}

// Seed writes trusted coordinates for a site straight into the cache,
// bypassing the resolver. Subsequent resolutions of the same site are
// served from the cache until the entry expires. Returns the cache key
// written.
func Seed(ctx context.Context, store *cache.Store, site model.SiteQuery, lat, lng float64, opts SeedOptions) (string, error) {
	if lat < -90 || lat > 90 {
		return "", eris.Errorf("geocode: seed latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return "", eris.Errorf("geocode: seed longitude %v out of range [-180, 180]", lng)
	}

	key := cache.Key(site)
	if key == "" {
		return "", eris.New("geocode: seed site has no identifying fields")
	}

	confidence := opts.Confidence
	if confidence == 0 {
		confidence = defaultSeedConfidence
	}
	if confidence < minSeedConfidence || confidence > 1 {
		return "", eris.Errorf("geocode: seed confidence %v outside [%v, 1]", confidence, minSeedConfidence)
	}

	store.Set(ctx, key, &model.CacheEntry{
		Lat:            lat,
		Lng:            lng,
		Confidence:     confidence,
		Provider:       model.ProviderManual,
		PlaceID:        opts.PlaceID,
		SourceChain:    []string{model.ProviderManual},
		ProvenanceURLs: opts.ProvenanceURLs,
	})

	zap.L().Info("geocode: seeded site",
		zap.String("site", site.ID),
		zap.String("key", cache.KeyPrefix(key)),
		zap.Float64("confidence", confidence),
	)
	return key, nil
}
