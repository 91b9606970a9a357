package domain

import (
	"context"
	"time"
)

// ForwardGeocoder turns free text into candidate places.
type ForwardGeocoder interface {
	Search(ctx context.Context, query string) ([]Place, error)
}

// ReverseGeocoder turns a coordinate pair into a place description.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c Coordinate) (Place, error)
}

// Geocoder pairs forward and reverse lookups.
type Geocoder interface {
	ForwardGeocoder
	ReverseGeocoder
}

// Providers combines two single-direction providers into a Geocoder.
type Providers struct {
	ForwardGeocoder
	ReverseGeocoder
}

// PositionOptions mirrors the options passed to the platform geolocation API.
type PositionOptions struct {
	EnableHighAccuracy bool          `json:"enableHighAccuracy"`
	Timeout            time.Duration `json:"-"`
	MaximumAge         time.Duration `json:"-"`
}

// DefaultPositionOptions requests a fresh high-accuracy fix within 10s.
func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		EnableHighAccuracy: true,
		Timeout:            10 * time.Second,
		MaximumAge:         0,
	}
}

// DeviceLocator asks the platform for the current position. Implementations
// return ErrPermissionDenied, ErrPositionUnavailable, ErrTimeout or
// ErrDeviceLocation on failure.
type DeviceLocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Coordinate, error)
}
