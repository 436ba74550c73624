package model

import (
	"strings"
	"time"
)

// Provider values for terminal resolution states.
const (
	ProviderUnresolved = "unresolved"
	ProviderManual     = "manual"
)

// SiteQuery describes one named site to resolve. It is immutable input:
// the engine never mutates it, only projects it into cache keys and
// candidate search strings.
type SiteQuery struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	Country    string   `json:"country,omitempty"`
	QueryHints []string `json:"query_hints,omitempty"`
}

// Region returns the site's regional qualifier: state when present,
// otherwise country.
func (s SiteQuery) Region() string {
	if r := strings.TrimSpace(s.State); r != "" {
		return r
	}
	return strings.TrimSpace(s.Country)
}

// CacheEntry is the persisted projection of a successful resolution.
// An entry is valid only while now - CachedAt < TTL; expired entries are
// treated as absent and deleted lazily.
type CacheEntry struct {
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Confidence     float64   `json:"confidence"`
	Provider       string    `json:"provider"`
	PlaceID        string    `json:"place_id,omitempty"`
	SourceChain    []string  `json:"source_chain"`
	LastVerified   time.Time `json:"last_verified"`
	ProvenanceURLs []string  `json:"provenance_urls,omitempty"`
	CachedAt       time.Time `json:"cached_at"`
	TTLMs          int64     `json:"ttl_ms"`
}

// TTL returns the entry's time-to-live as a duration.
func (e CacheEntry) TTL() time.Duration {
	return time.Duration(e.TTLMs) * time.Millisecond
}

// Expired reports whether the entry is no longer valid at the given time.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CachedAt) >= e.TTL()
}

// ResolvedSite is the outcome of resolving one SiteQuery. Lat/Lng are nil,
// Confidence is 0, and Provider is "unresolved" when no candidate matched;
// that is a valid terminal state, not an error.
type ResolvedSite struct {
	SiteQuery
	Lat            *float64  `json:"lat"`
	Lng            *float64  `json:"lng"`
	Confidence     float64   `json:"confidence"`
	Provider       string    `json:"provider"`
	SourceChain    []string  `json:"source_chain"`
	LastVerified   time.Time `json:"last_verified"`
	ProvenanceURLs []string  `json:"provenance_urls,omitempty"`
	Cached         bool      `json:"cached"`
}

// Resolved reports whether the site carries coordinates.
func (r ResolvedSite) Resolved() bool {
	return r.Lat != nil && r.Lng != nil
}

// UnresolvedSite builds the terminal no-match result for a query,
// carrying the provenance chain of every attempt made.
func UnresolvedSite(q SiteQuery, chain []string) ResolvedSite {
	return ResolvedSite{
		SiteQuery:   q,
		Provider:    ProviderUnresolved,
		SourceChain: chain,
	}
}

// BatchResultSet is the whole-batch aggregate cached under a single
// reserved key, independent of the per-site entries.
type BatchResultSet struct {
	RunID     string         `json:"run_id"`
	Results   []ResolvedSite `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
	SiteCount int            `json:"site_count"`
}
