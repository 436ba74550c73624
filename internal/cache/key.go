package cache

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/atlas-cli/internal/model"
)

// batchResultsKey is the single reserved key holding the whole-batch
// aggregate. It cannot collide with site keys, which never start with "|".
const batchResultsKey = "|batch-results"

// Key returns the cache key for a site: the normalized, pipe-joined
// projection of name, address, city, state, and country with empty fields
// omitted. Identical logical sites yield identical keys regardless of
// casing, whitespace, or diacritics.
func Key(site model.SiteQuery) string {
	fields := []string{site.Name, site.Address, site.City, site.State, site.Country}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if n := normalizeField(f); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// KeyPrefix truncates a key for logging.
func KeyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// normalizeField lower-cases, trims, collapses internal whitespace, and
// strips diacritics.
func normalizeField(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = foldDiacritics(s)
	return strings.Join(strings.Fields(s), " ")
}

// foldDiacritics removes combining marks, mapping "Café" to "Cafe".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
