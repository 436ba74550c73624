package sitefile

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/atlas-cli/internal/model"
)

// columnMap locates the well-known columns in a tabular header row.
// A value of -1 means the column is absent.
type columnMap struct {
	id, name, address, city, state, country, hints int
}

func mapColumns(header []string) (columnMap, error) {
	cm := columnMap{id: -1, name: -1, address: -1, city: -1, state: -1, country: -1, hints: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "id", "site_id":
			cm.id = i
		case "name", "site_name":
			cm.name = i
		case "address", "street_address":
			cm.address = i
		case "city":
			cm.city = i
		case "state", "region", "province":
			cm.state = i
		case "country":
			cm.country = i
		case "hints", "query_hints":
			cm.hints = i
		}
	}
	if cm.name == -1 && cm.address == -1 {
		return cm, eris.New("sitefile: header has no name or address column")
	}
	return cm, nil
}

func (cm columnMap) site(record []string) model.SiteQuery {
	return model.SiteQuery{
		ID:         cell(record, cm.id),
		Name:       cell(record, cm.name),
		Address:    cell(record, cm.address),
		City:       cell(record, cm.city),
		State:      cell(record, cm.state),
		Country:    cell(record, cm.country),
		QueryHints: splitHints(cell(record, cm.hints)),
	}
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func loadCSV(path string) ([]model.SiteQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sitefile: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]model.SiteQuery, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("sitefile: csv file is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sitefile: read csv header")
	}

	cm, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var sites []model.SiteQuery
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "sitefile: read csv record")
		}
		sites = append(sites, cm.site(record))
	}
	return assignIDs(sites), nil
}

func loadXLSX(path string) ([]model.SiteQuery, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sitefile: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("sitefile: xlsx file has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("sitefile: xlsx sheet %s is empty", sheet.Name)
	}

	cm, err := mapColumns(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var sites []model.SiteQuery
	for _, row := range sheet.Rows[1:] {
		sites = append(sites, cm.site(rowToStrings(row)))
	}
	return assignIDs(sites), nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}
