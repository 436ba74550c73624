package sitefile

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atlas-cli/internal/model"
)

// SeedRecord pairs a site with hand-verified coordinates from a bulk
// seed file.
type SeedRecord struct {
	Site       model.SiteQuery
	Lat        float64
	Lng        float64
	Confidence float64
}

// LoadSeeds reads a CSV of sites with lat/lng columns (and an optional
// confidence column) for bulk cache seeding.
func LoadSeeds(path string) ([]SeedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sitefile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("sitefile: seed file is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sitefile: read seed header")
	}

	cm, err := mapColumns(header)
	if err != nil {
		return nil, err
	}
	latIdx, lngIdx, confIdx := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "lat", "latitude":
			latIdx = i
		case "lng", "lon", "longitude":
			lngIdx = i
		case "confidence":
			confIdx = i
		}
	}
	if latIdx == -1 || lngIdx == -1 {
		return nil, eris.New("sitefile: seed file needs lat and lng columns")
	}

	var seeds []SeedRecord
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "sitefile: read seed record")
		}
		row++

		site := cm.site(record)
		if isBlank(site) {
			continue
		}
		if strings.TrimSpace(site.ID) == "" {
			site.ID = positionalID(len(seeds) + 1)
		}

		lat, err := strconv.ParseFloat(cell(record, latIdx), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "sitefile: row %d lat", row)
		}
		lng, err := strconv.ParseFloat(cell(record, lngIdx), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "sitefile: row %d lng", row)
		}

		var conf float64
		if raw := cell(record, confIdx); raw != "" {
			conf, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "sitefile: row %d confidence", row)
			}
		}

		seeds = append(seeds, SeedRecord{Site: site, Lat: lat, Lng: lng, Confidence: conf})
	}
	return seeds, nil
}
