package nominatim

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
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the app, as required by the Nominatim usage policy.
	DefaultUserAgent = "IftarInUAE/1.0 (https://iftarinuae.com)"

	providerName = "nominatim"
)

// Client implements domain.ReverseGeocoder using the Nominatim reverse API.
// Requests are throttled client-side; the public instance allows one per second.
type Client struct {
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. ratePerSecond <= 0 disables throttling.
func NewClient(baseURL, userAgent string, timeout time.Duration, ratePerSecond float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limiter:   rate.NewLimiter(limit, 1),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Reverse looks up the address nearest to c.
func (c *Client) Reverse(ctx context.Context, coord domain.Coordinate) (domain.Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Place{}, fmt.Errorf("%w: nominatim throttle: %w", domain.ErrProvider, err)
	}

	params := url.Values{
		"lat":    {strconv.FormatFloat(coord.Lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(coord.Lon, 'f', -1, 64)},
		"format": {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
		return domain.Place{}, fmt.Errorf("%w: nominatim reverse request: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.Place{}, fmt.Errorf("%w: nominatim API error: status %d: %s", domain.ErrProvider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var nr response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&nr); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
		return domain.Place{}, fmt.Errorf("%w: decode nominatim response: %w", domain.ErrProvider, err)
	}

	// Nominatim answers 200 with {"error": "Unable to geocode"} over open water.
	if nr.Error != "" {
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "empty").Inc()
		c.logger.Debug("nominatim returned no address", "lat", coord.Lat, "lon", coord.Lon, "reason", nr.Error)
		return domain.Place{Coordinate: coord}, nil
	}

	c.metrics.GeocodeRequests.WithLabelValues(providerName, "success").Inc()
	return nr.place(coord), nil
}

// Nominatim API response types.

type response struct {
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
	Error       string  `json:"error,omitempty"`
}

type address struct {
	Amenity  string `json:"amenity,omitempty"`
	Tourism  string `json:"tourism,omitempty"`
	Shop     string `json:"shop,omitempty"`
	Road     string `json:"road,omitempty"`
	Suburb   string `json:"suburb,omitempty"`
	City     string `json:"city,omitempty"`
	Town     string `json:"town,omitempty"`
	Village  string `json:"village,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

func (r response) place(coord domain.Coordinate) domain.Place {
	return domain.Place{
		Name:        firstNonEmpty(r.Address.Amenity, r.Address.Tourism, r.Address.Shop),
		Street:      r.Address.Road,
		Suburb:      r.Address.Suburb,
		City:        firstNonEmpty(r.Address.City, r.Address.Town, r.Address.Village),
		State:       r.Address.State,
		Country:     r.Address.Country,
		Postcode:    r.Address.Postcode,
		DisplayName: r.DisplayName,
		Coordinate:  coord,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
