// Package locator resolves search text, map pins and device fixes into
// sanitized locations, degrading gracefully when providers fail.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/observability"
)

// MaxCandidates caps the candidates returned by Search.
const MaxCandidates = 5

// Publisher receives confirmed locations, e.g. for persistence downstream.
type Publisher interface {
	Publish(ctx context.Context, evt domain.LocationConfirmed) error
}

// Service is the geocode client facade shared by the HTTP API and the picker.
type Service struct {
	geocoder  domain.Geocoder
	publisher Publisher
	position  domain.PositionOptions
	metrics   *observability.Metrics
	logger    *slog.Logger
	draining  atomic.Bool
}

// New creates a Service. A nil publisher disables confirmation events.
func New(geocoder domain.Geocoder, publisher Publisher, position domain.PositionOptions, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		geocoder:  geocoder,
		publisher: publisher,
		position:  position,
		metrics:   metrics,
		logger:    logger,
	}
}

// Search returns up to MaxCandidates sanitized candidates for query. Provider
// failures yield an empty list; candidates with invalid coordinates are dropped.
func (s *Service) Search(ctx context.Context, query string) []domain.Candidate {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	places, err := s.geocoder.Search(ctx, query)
	if err != nil {
		s.logger.Warn("forward geocoding failed", "query", query, "error", err)
		return []domain.Candidate{}
	}

	candidates := make([]domain.Candidate, 0, min(len(places), MaxCandidates))
	for _, p := range places {
		if !p.Valid() {
			s.metrics.CandidatesDropped.Inc()
			s.logger.Debug("dropping candidate with invalid coordinates",
				"name", p.Name, "lat", p.Lat, "lon", p.Lon)
			continue
		}
		addr := domain.SanitizeAddress(domain.AssembleAddress(p))
		if addr == "" {
			addr = domain.CoordinateLabel(p.Coordinate)
		}
		candidates = append(candidates, domain.Candidate{Address: addr, Coordinate: p.Coordinate, Place: p})
		if len(candidates) == MaxCandidates {
			break
		}
	}
	return candidates
}

// Select confirms a search candidate.
func (s *Service) Select(c domain.Candidate) (domain.ResolvedLocation, error) {
	if !c.Valid() {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: candidate (%v, %v)", domain.ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	s.metrics.Resolutions.WithLabelValues(string(domain.ModeSearch), "provider").Inc()
	return c.Resolved(), nil
}

// Resolve reverse geocodes c. A provider failure or an empty answer falls
// back to the coordinate label: validated coordinates are authoritative.
func (s *Service) Resolve(ctx context.Context, mode domain.Mode, c domain.Coordinate) (domain.ResolvedLocation, error) {
	if !c.Valid() {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: (%v, %v)", domain.ErrInvalidCoordinate, c.Lat, c.Lon)
	}

	source := "provider"
	place, err := s.geocoder.Reverse(ctx, c)
	if err != nil {
		s.logger.Warn("reverse geocoding failed, using coordinates",
			"lat", c.Lat,
			"lon", c.Lon,
			"mode", mode,
			"error", err,
		)
		place = domain.Place{}
	}

	addr := domain.SanitizeAddress(domain.AssembleAddress(place))
	if addr == "" {
		addr = domain.CoordinateLabel(c)
		source = "fallback"
	}

	s.metrics.Resolutions.WithLabelValues(string(mode), source).Inc()
	return domain.NewResolvedLocation(addr, c), nil
}

// Locate asks the device for its position, then resolves it. Device failures
// are returned as classified errors and never retried.
func (s *Service) Locate(ctx context.Context, device domain.DeviceLocator) (domain.ResolvedLocation, error) {
	if device == nil {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: no device locator", domain.ErrPositionUnavailable)
	}
	c, err := device.CurrentPosition(ctx, s.position)
	if err != nil {
		return domain.ResolvedLocation{}, err
	}
	if !c.Valid() {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: device reported (%v, %v)", domain.ErrPositionUnavailable, c.Lat, c.Lon)
	}
	return s.Resolve(ctx, domain.ModeGPS, c)
}

// Confirm validates a location chosen by the host form and publishes it.
// Publishing is best effort; a failure is logged and does not fail the call.
func (s *Service) Confirm(ctx context.Context, sessionID string, mode domain.Mode, loc domain.ResolvedLocation) (domain.ResolvedLocation, error) {
	c, err := loc.Coordinate()
	if err != nil {
		return domain.ResolvedLocation{}, err
	}
	addr := domain.SanitizeAddress(loc.Address)
	if addr == "" {
		addr = domain.CoordinateLabel(c)
	}
	confirmed := domain.NewResolvedLocation(addr, c)
	s.metrics.Confirmations.WithLabelValues(string(mode)).Inc()

	if s.publisher == nil {
		return confirmed, nil
	}
	if err := s.publisher.Publish(ctx, domain.NewLocationConfirmed(sessionID, mode, confirmed)); err != nil {
		s.metrics.ConfirmationsDropped.Inc()
		s.logger.Error("publish confirmed location failed", "session_id", sessionID, "mode", mode, "error", err)
	}
	return confirmed, nil
}

// PositionOptions returns the options used for device requests.
func (s *Service) PositionOptions() domain.PositionOptions {
	return s.position
}

// Drain marks the service as shutting down so readiness checks fail.
func (s *Service) Drain() {
	s.draining.Store(true)
}

var errDraining = errors.New("service is shutting down")

// CheckReadiness returns an error once Drain has been called.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.draining.Load() {
		return errDraining
	}
	return nil
}
