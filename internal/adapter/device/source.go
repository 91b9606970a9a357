package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iftarinuae/location-resolver/internal/domain"
)

// Report is the outcome of a browser geolocation call, as posted by the
// frontend. Exactly one of the position or Error is expected.
type Report struct {
	Latitude  *float64     `json:"latitude,omitempty"`
	Longitude *float64     `json:"longitude,omitempty"`
	Accuracy  float64      `json:"accuracy,omitempty"`
	Error     *ReportError `json:"error,omitempty"`
}

// ReportError carries a GeolocationPositionError.
type ReportError struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

var errEmptyReport = errors.New("report has neither position nor error")

// Position returns the reported fix or the classified failure.
func (r Report) Position() (domain.Coordinate, error) {
	if r.Error != nil {
		err := domain.DeviceError(r.Error.Code)
		if r.Error.Message != "" {
			return domain.Coordinate{}, fmt.Errorf("%w: %s", err, r.Error.Message)
		}
		return domain.Coordinate{}, err
	}
	if r.Latitude == nil || r.Longitude == nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrDeviceLocation, errEmptyReport)
	}
	return domain.Coordinate{Lat: *r.Latitude, Lon: *r.Longitude}, nil
}

// Source adapts the report for a Locator.
func (r Report) Source() Source {
	return func(context.Context) (domain.Coordinate, error) {
		return r.Position()
	}
}

// Fixed always reports c.
func Fixed(c domain.Coordinate) Source {
	return func(context.Context) (domain.Coordinate, error) {
		return c, nil
	}
}

// Failing always fails with err.
func Failing(err error) Source {
	return func(context.Context) (domain.Coordinate, error) {
		return domain.Coordinate{}, err
	}
}

// Unresponsive never answers; the Locator's timeout decides the outcome.
func Unresponsive() Source {
	return func(ctx context.Context) (domain.Coordinate, error) {
		<-ctx.Done()
		return domain.Coordinate{}, ctx.Err()
	}
}

// ParseSource builds a Source from a command-line spec: "lat,lon" for a fix,
// or one of "denied", "unavailable", "timeout" to simulate a failure.
func ParseSource(spec string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "":
		return Failing(domain.ErrPositionUnavailable), nil
	case "denied":
		return Failing(domain.ErrPermissionDenied), nil
	case "unavailable":
		return Failing(domain.ErrPositionUnavailable), nil
	case "timeout":
		return Unresponsive(), nil
	}

	lat, lon, ok := strings.Cut(spec, ",")
	if !ok {
		return nil, fmt.Errorf("device spec %q: want lat,lon or denied|unavailable|timeout", spec)
	}
	c, err := domain.ParseCoordinate(lat, lon)
	if err != nil {
		return nil, fmt.Errorf("device spec: %w", err)
	}
	return Fixed(c), nil
}
