package export

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/model"
)

// shapeFields defines the DBF attribute layout for shapefile export.
// DBF field names are capped at 10 characters.
var shapeFields = []shp.Field{
	shp.StringField("ID", 32),
	shp.StringField("NAME", 64),
	shp.StringField("CITY", 32),
	shp.StringField("STATE", 16),
	shp.FloatField("CONFIDENCE", 6, 4),
	shp.StringField("PROVIDER", 16),
	shp.StringField("CHAIN", 128),
}

// WriteShapefile writes resolved sites as a point shapefile at path,
// creating the .shp, .shx, and .dbf sidecars. Unresolved sites are
// skipped; the count of points written is returned.
func WriteShapefile(path string, results []model.ResolvedSite) (int, error) {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields(shapeFields)

	written := 0
	skipped := 0
	for _, r := range results {
		if !r.Resolved() {
			skipped++
			continue
		}

		row := int(w.Write(&shp.Point{X: *r.Lng, Y: *r.Lat}))
		attrs := []any{
			r.ID,
			r.Name,
			r.City,
			r.State,
			r.Confidence,
			r.Provider,
			strings.Join(r.SourceChain, ";"),
		}
		for field, value := range attrs {
			if err := w.WriteAttribute(row, field, value); err != nil {
				return written, eris.Wrapf(err, "export: write shapefile attribute for %s", r.ID)
			}
		}
		written++
	}
	if skipped > 0 {
		zap.L().Debug("export: skipped unresolved sites", zap.Int("skipped", skipped))
	}

	return written, nil
}
