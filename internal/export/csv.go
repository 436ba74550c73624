package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atlas-cli/internal/model"
)

// csvColumns defines the ordered CSV output columns.
var csvColumns = []string{
	"id",
	"name",
	"address",
	"city",
	"state",
	"country",
	"lat",
	"lng",
	"confidence",
	"provider",
	"cached",
	"source_chain",
}

// WriteCSV writes the full result set as CSV, one row per site.
// Unresolved sites keep their row with empty coordinate columns.
func WriteCSV(w io.Writer, results []model.ResolvedSite) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range results {
		if err := cw.Write(buildCSVRow(r)); err != nil {
			return eris.Wrapf(err, "export: write csv row for %s", r.ID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func buildCSVRow(r model.ResolvedSite) []string {
	return []string{
		r.ID,
		r.Name,
		r.Address,
		r.City,
		r.State,
		r.Country,
		formatCoord(r.Lat),
		formatCoord(r.Lng),
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		r.Provider,
		strconv.FormatBool(r.Cached),
		strings.Join(r.SourceChain, ";"),
	}
}
