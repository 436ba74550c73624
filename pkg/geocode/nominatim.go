package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/time/rate"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent    = "atlas-cli/1.0 (+https://github.com/sells-group/atlas-cli)"
	osmBaseURL          = "https://www.openstreetmap.org"
)

// nominatimPlace is one element of the JSON array returned by the
// Nominatim search API in jsonv2 format.
type nominatimPlace struct {
	PlaceID     json.Number `json:"place_id"`
	Lat         string      `json:"lat"` // coordinates arrive as strings
	Lon         string      `json:"lon"`
	DisplayName string      `json:"display_name"`
	Importance  *float64    `json:"importance"`
	OSMType     string      `json:"osm_type"`
	OSMID       json.Number `json:"osm_id"`
}

// NominatimClient is a Provider backed by the public Nominatim search API.
// The default rate limit of one request per second matches the usage
// policy of the public instance.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	email      string
	userAgent  string
	limiter    *rate.Limiter

	baseConfidence float64
	minConfidence  float64
	maxConfidence  float64
}

// NominatimOption configures the client.
type NominatimOption func(*NominatimClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) NominatimOption {
	return func(c *NominatimClient) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the search endpoint, e.g. for a self-hosted
// instance.
func WithBaseURL(u string) NominatimOption {
	return func(c *NominatimClient) {
		c.baseURL = u
	}
}

// WithEmail sets the contact email sent with each request, as the public
// instance asks of heavy users.
func WithEmail(email string) NominatimOption {
	return func(c *NominatimClient) {
		c.email = email
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) NominatimOption {
	return func(c *NominatimClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) NominatimOption {
	return func(c *NominatimClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithConfidenceBounds sets the confidence assigned to matches: base when
// the provider reports no importance, otherwise min..max rescaled by
// importance.
func WithConfidenceBounds(base, min, max float64) NominatimOption {
	return func(c *NominatimClient) {
		c.baseConfidence = base
		c.minConfidence = min
		c.maxConfidence = max
	}
}

// NewNominatim creates a NominatimClient with the given options.
func NewNominatim(opts ...NominatimOption) *NominatimClient {
	c := &NominatimClient{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		baseURL:        defaultNominatimURL,
		userAgent:      defaultUserAgent,
		limiter:        rate.NewLimiter(1, 1),
		baseConfidence: 0.7,
		minConfidence:  0.5,
		maxConfidence:  0.95,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Provider.
func (c *NominatimClient) Name() string { return "nominatim" }

// Available implements Provider.
func (c *NominatimClient) Available() bool { return c.baseURL != "" }

// Search implements Provider. At most one place is requested; an empty
// result array is a no-match, not an error.
func (c *NominatimClient) Search(ctx context.Context, query string, bias *geom.Bounds) (*ProviderResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	if bias != nil {
		params.Set("viewbox", formatViewbox(bias))
		params.Set("bounded", "1")
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		return &ProviderResult{Matched: false}, nil
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", place.Lat)
	}
	lng, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", place.Lon)
	}

	return &ProviderResult{
		Lat:           lat,
		Lng:           lng,
		Confidence:    c.confidence(place.Importance),
		PlaceID:       place.PlaceID.String(),
		DisplayName:   place.DisplayName,
		ProvenanceURL: provenanceURL(place.OSMType, place.OSMID.String()),
		Matched:       true,
	}, nil
}

// confidence maps the provider's importance score onto min..max, or falls
// back to the base confidence when importance is absent.
func (c *NominatimClient) confidence(importance *float64) float64 {
	if importance == nil {
		return c.baseConfidence
	}
	conf := c.minConfidence + (c.maxConfidence-c.minConfidence)*(*importance)
	if conf < c.minConfidence {
		return c.minConfidence
	}
	if conf > c.maxConfidence {
		return c.maxConfidence
	}
	return conf
}

// provenanceURL builds the canonical OSM element URL, e.g.
// https://www.openstreetmap.org/way/123.
func provenanceURL(osmType, osmID string) string {
	if osmType == "" || osmID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", osmBaseURL, osmType, osmID)
}

// formatViewbox renders a bounding box as minLon,minLat,maxLon,maxLat.
func formatViewbox(b *geom.Bounds) string {
	return fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(b.Min(0)),
		formatCoord(b.Min(1)),
		formatCoord(b.Max(0)),
		formatCoord(b.Max(1)),
	)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
