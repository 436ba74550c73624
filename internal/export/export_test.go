package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/model"
)

func f64(v float64) *float64 { return &v }

func resolvedFixture() model.ResolvedSite {
	return model.ResolvedSite{
		SiteQuery: model.SiteQuery{
			ID:      "site-1",
			Name:    "Acme Manufacturing",
			Address: "100 Main St",
			City:    "Springfield",
			State:   "IL",
			Country: "US",
		},
		Lat:            f64(39.7817),
		Lng:            f64(-89.6501),
		Confidence:     0.93,
		Provider:       "nominatim",
		SourceChain:    []string{"nominatim/q1/global"},
		ProvenanceURLs: []string{"https://www.openstreetmap.org/way/1"},
	}
}

func unresolvedFixture() model.ResolvedSite {
	return model.UnresolvedSite(
		model.SiteQuery{ID: "site-2", Name: "Ghost Plant", City: "Nowhere"},
		[]string{"nominatim/q1/global", "nominatim/q2/global"},
	)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSON(&buf, []model.ResolvedSite{resolvedFixture(), unresolvedFixture()})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	var out []model.ResolvedSite
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Lat)
	assert.InDelta(t, 39.7817, *out[0].Lat, 1e-9)
	assert.Equal(t, "nominatim", out[0].Provider)
	assert.Nil(t, out[1].Lat)
	assert.Equal(t, model.ProviderUnresolved, out[1].Provider)
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer

	err := WriteCSV(&buf, []model.ResolvedSite{resolvedFixture(), unresolvedFixture()})
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvColumns, rows[0])

	resolved := rows[1]
	assert.Equal(t, "site-1", resolved[0])
	assert.Equal(t, "39.7817", resolved[6])
	assert.Equal(t, "-89.6501", resolved[7])
	assert.Equal(t, "0.93", resolved[8])
	assert.Equal(t, "nominatim", resolved[9])
	assert.Equal(t, "false", resolved[10])
	assert.Equal(t, "nominatim/q1/global", resolved[11])

	unresolved := rows[2]
	assert.Equal(t, "site-2", unresolved[0])
	assert.Equal(t, "", unresolved[6])
	assert.Equal(t, "", unresolved[7])
	assert.Equal(t, "0", unresolved[8])
	assert.Equal(t, model.ProviderUnresolved, unresolved[9])
	assert.Equal(t, "nominatim/q1/global;nominatim/q2/global", unresolved[11])
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer

	n, err := WriteGeoJSON(&buf, []model.ResolvedSite{resolvedFixture(), unresolvedFixture()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)

	feat := fc.Features[0]
	assert.Equal(t, "Feature", feat.Type)
	assert.Equal(t, "site-1", feat.ID)
	assert.Equal(t, "Point", feat.Geometry.Type)
	require.Len(t, feat.Geometry.Coordinates, 2)
	assert.InDelta(t, -89.6501, feat.Geometry.Coordinates[0], 1e-9)
	assert.InDelta(t, 39.7817, feat.Geometry.Coordinates[1], 1e-9)
	assert.Equal(t, "Acme Manufacturing", feat.Properties["name"])
	assert.Equal(t, "nominatim", feat.Properties["provider"])
	assert.Equal(t, "Springfield", feat.Properties["city"])
	assert.Equal(t, false, feat.Properties["cached"])
}

func TestWriteGeoJSON_AllUnresolved(t *testing.T) {
	var buf bytes.Buffer

	n, err := WriteGeoJSON(&buf, []model.ResolvedSite{unresolvedFixture()})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, buf.String(), `"features":[]`)
}

func TestWriteShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.shp")

	second := resolvedFixture()
	second.ID = "site-3"
	second.Name = "Globex Corp"
	second.Lat = f64(40.0)
	second.Lng = f64(-83.0)

	n, err := WriteShapefile(path, []model.ResolvedSite{resolvedFixture(), unresolvedFixture(), second})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reader, err := shp.Open(path)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	require.Len(t, fields, len(shapeFields))

	var points []*shp.Point
	var ids, names, confs []string
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		require.True(t, ok)
		points = append(points, point)
		ids = append(ids, cleanAttr(reader.Attribute(0)))
		names = append(names, cleanAttr(reader.Attribute(1)))
		confs = append(confs, cleanAttr(reader.Attribute(4)))
	}

	require.Len(t, points, 2)
	assert.InDelta(t, -89.6501, points[0].X, 1e-6)
	assert.InDelta(t, 39.7817, points[0].Y, 1e-6)
	assert.Equal(t, []string{"site-1", "site-3"}, ids)
	assert.Equal(t, []string{"Acme Manufacturing", "Globex Corp"}, names)

	conf, err := strconv.ParseFloat(confs[0], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.93, conf, 1e-3)
}

func cleanAttr(v string) string {
	return strings.TrimSpace(strings.TrimRight(v, "\x00"))
}
