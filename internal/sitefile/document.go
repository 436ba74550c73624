package sitefile

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/atlas-cli/internal/model"
)

// siteDoc is the wrapper shape for YAML and JSON inputs:
//
//	sites:
//	  - name: Acme Manufacturing
//	    city: Springfield
type siteDoc struct {
	Sites []siteEntry `yaml:"sites" json:"sites"`
}

type siteEntry struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Address string   `yaml:"address" json:"address"`
	City    string   `yaml:"city" json:"city"`
	State   string   `yaml:"state" json:"state"`
	Country string   `yaml:"country" json:"country"`
	Hints   []string `yaml:"query_hints" json:"query_hints"`
}

func (e siteEntry) site() model.SiteQuery {
	return model.SiteQuery{
		ID:         e.ID,
		Name:       e.Name,
		Address:    e.Address,
		City:       e.City,
		State:      e.State,
		Country:    e.Country,
		QueryHints: e.Hints,
	}
}

func convert(entries []siteEntry) []model.SiteQuery {
	sites := make([]model.SiteQuery, 0, len(entries))
	for _, e := range entries {
		sites = append(sites, e.site())
	}
	return sites
}

func loadYAML(path string) ([]model.SiteQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sitefile: read %s", path)
	}

	var doc siteDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "sitefile: parse yaml %s", path)
	}
	return assignIDs(convert(doc.Sites)), nil
}

// loadJSON accepts either a bare array of sites or the same wrapper
// object YAML uses.
func loadJSON(path string) ([]model.SiteQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sitefile: read %s", path)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []siteEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, eris.Wrapf(err, "sitefile: parse json %s", path)
		}
		return assignIDs(convert(entries)), nil
	}

	var doc siteDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, eris.Wrapf(err, "sitefile: parse json %s", path)
	}
	return assignIDs(convert(doc.Sites)), nil
}
