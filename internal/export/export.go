// Package export writes resolved sites to JSON, CSV, GeoJSON, and
// shapefile outputs.
package export

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atlas-cli/internal/model"
)

// Formats lists the supported output format names.
var Formats = []string{"json", "csv", "geojson", "shp"}

// WriteJSON writes the full result set as indented JSON, unresolved
// sites included.
func WriteJSON(w io.Writer, results []model.ResolvedSite) error {
	if results == nil {
		results = []model.ResolvedSite{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write json")
	}
	return nil
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
