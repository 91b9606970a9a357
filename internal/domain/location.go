package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Mode identifies how a location was picked.
type Mode string

const (
	ModeSearch Mode = "search"
	ModePin    Mode = "pin"
	ModeGPS    Mode = "gps"
)

// ParseMode maps a wire value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSearch, ModePin, ModeGPS:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c passes ValidCoordinate.
func (c Coordinate) Valid() bool {
	return ValidCoordinate(c.Lat, c.Lon)
}

// BoundingBox is a lon/lat rectangle used to bias forward search.
type BoundingBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// UAEBounds covers the United Arab Emirates.
var UAEBounds = BoundingBox{MinLon: 51.5, MinLat: 22.6, MaxLon: 56.4, MaxLat: 26.1}

// String renders the box in the "minLon,minLat,maxLon,maxLat" form providers expect.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		formatDegrees(b.MinLon), formatDegrees(b.MinLat),
		formatDegrees(b.MaxLon), formatDegrees(b.MaxLat))
}

// Place is a single provider result before sanitization.
type Place struct {
	Name        string
	Street      string
	Suburb      string
	City        string
	State       string
	Country     string
	Postcode    string
	DisplayName string
	Coordinate
}

// Candidate is a validated, sanitized forward-search result.
type Candidate struct {
	Address string
	Coordinate
	Place Place
}

// Resolved converts the candidate into the location handed to the host form.
func (c Candidate) Resolved() ResolvedLocation {
	return NewResolvedLocation(c.Address, c.Coordinate)
}

// ResolvedLocation is the single output of every input mode.
type ResolvedLocation struct {
	Address   string `json:"address"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// NewResolvedLocation sanitizes address and renders the coordinate.
func NewResolvedLocation(address string, c Coordinate) ResolvedLocation {
	return ResolvedLocation{
		Address:   SanitizeAddress(address),
		Latitude:  formatDegrees(c.Lat),
		Longitude: formatDegrees(c.Lon),
	}
}

// Coordinate parses the location's latitude and longitude back into a
// validated pair.
func (l ResolvedLocation) Coordinate() (Coordinate, error) {
	return ParseCoordinate(l.Latitude, l.Longitude)
}

// LocationConfirmed is published once per confirmed resolution.
type LocationConfirmed struct {
	SessionID   string           `json:"session_id"`
	Mode        Mode             `json:"mode"`
	Location    ResolvedLocation `json:"location"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}

// NewLocationConfirmed stamps a confirmation with the package clock.
func NewLocationConfirmed(sessionID string, mode Mode, loc ResolvedLocation) LocationConfirmed {
	return LocationConfirmed{
		SessionID:   sessionID,
		Mode:        mode,
		Location:    loc,
		ConfirmedAt: clock.Now().UTC(),
	}
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
