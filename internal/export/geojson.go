package export

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/model"
)

// WriteGeoJSON writes resolved sites as a GeoJSON FeatureCollection of
// points. Unresolved sites carry no geometry and are skipped; the count
// of features written is returned.
func WriteGeoJSON(w io.Writer, results []model.ResolvedSite) (int, error) {
	fc := geojson.FeatureCollection{Features: []*geojson.Feature{}}
	skipped := 0

	for _, r := range results {
		if !r.Resolved() {
			skipped++
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*r.Lng, *r.Lat}),
			Properties: featureProperties(r),
		})
	}
	if skipped > 0 {
		zap.L().Debug("export: skipped unresolved sites", zap.Int("skipped", skipped))
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return 0, eris.Wrap(err, "export: encode geojson")
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return 0, eris.Wrap(err, "export: write geojson")
	}
	return len(fc.Features), nil
}

func featureProperties(r model.ResolvedSite) map[string]any {
	props := map[string]any{
		"name":       r.Name,
		"confidence": r.Confidence,
		"provider":   r.Provider,
		"cached":     r.Cached,
	}
	if len(r.SourceChain) > 0 {
		props["source_chain"] = strings.Join(r.SourceChain, ";")
	}
	for key, val := range map[string]string{
		"address": r.Address,
		"city":    r.City,
		"state":   r.State,
		"country": r.Country,
	} {
		if val != "" {
			props[key] = val
		}
	}
	return props
}
