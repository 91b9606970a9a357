package photon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/observability"
)

const (
	// DefaultBaseURL is the public Komoot Photon instance.
	DefaultBaseURL = "https://photon.komoot.io"

	// DefaultLimit caps candidates returned per search.
	DefaultLimit = 5

	providerName = "photon"
)

// Client implements domain.ForwardGeocoder using the Photon search API.
type Client struct {
	baseURL    string
	userAgent  string
	limit      int
	bounds     domain.BoundingBox
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Photon client biased to the UAE.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limit:     DefaultLimit,
		bounds:    domain.UAEBounds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Search returns up to five places matching query inside the bounding box.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Place, error) {
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(c.limit)},
		"bbox":  {c.bounds.String()},
		"lang":  {"en"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
		return nil, fmt.Errorf("%w: photon search request: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: photon API error: status %d: %s", domain.ErrProvider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var photonResp response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 2<<20)).Decode(&photonResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
		return nil, fmt.Errorf("%w: decode photon response: %w", domain.ErrProvider, err)
	}

	places := make([]domain.Place, 0, len(photonResp.Features))
	for _, f := range photonResp.Features {
		p, ok := f.place()
		if !ok {
			c.logger.Debug("photon feature without point geometry", "name", f.Properties.Name)
			continue
		}
		places = append(places, p)
		if len(places) == c.limit {
			break
		}
	}

	outcome := "success"
	if len(places) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(providerName, outcome).Inc()
	return places, nil
}

// Photon API response types (GeoJSON FeatureCollection).

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
	Geometry   geometry   `json:"geometry"`
}

type properties struct {
	Name     string `json:"name,omitempty"`
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

type geometry struct {
	Type        string    `json:"type,omitempty"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

func (f feature) place() (domain.Place, bool) {
	if len(f.Geometry.Coordinates) < 2 {
		return domain.Place{}, false
	}
	p := domain.Place{
		Name:     f.Properties.Name,
		Street:   f.Properties.Street,
		City:     f.Properties.City,
		State:    f.Properties.State,
		Country:  f.Properties.Country,
		Postcode: f.Properties.Postcode,
		Coordinate: domain.Coordinate{
			Lat: f.Geometry.Coordinates[1],
			Lon: f.Geometry.Coordinates[0],
		},
	}
	p.DisplayName = joinNonEmpty(p.Name, p.Street, p.City, p.State, p.Country)
	return p, true
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
