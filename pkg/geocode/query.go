package geocode

import (
	"strings"

	"github.com/sells-group/atlas-cli/internal/model"
)

// Candidates returns the geocoding query strings for a site, most specific
// first. Address-bearing sites lead with the full address; each later rung
// drops a field until only the name remains. Caller-supplied hints trail
// the ladder. Empty rungs are removed and duplicates keep their first
// position.
func Candidates(site model.SiteQuery) []string {
	region := site.Region()

	var raw []string
	if strings.TrimSpace(site.Address) != "" {
		raw = append(raw,
			joinParts(site.Name, site.Address, site.City, site.State, site.Country),
			joinParts(site.Address, site.City, site.State, site.Country),
		)
	}
	raw = append(raw,
		joinParts(site.Name, site.City, region),
		joinParts(site.Name, region),
		joinParts(site.Name),
	)
	raw = append(raw, site.QueryHints...)

	seen := make(map[string]struct{}, len(raw))
	queries := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	return queries
}

// joinParts joins non-empty parts with ", ".
func joinParts(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
