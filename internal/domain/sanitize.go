package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxAddressLength caps sanitized addresses, in runes.
const MaxAddressLength = 300

// ValidCoordinate reports whether lat and lon are finite and inside
// [-90, 90] x [-180, 180].
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ParseCoordinate parses decimal degree strings and validates the pair.
func ParseCoordinate(lat, lon string) (Coordinate, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinate, lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinate, lon)
	}
	if !ValidCoordinate(la, lo) {
		return Coordinate{}, fmt.Errorf("%w: (%s, %s) out of range", ErrInvalidCoordinate, lat, lon)
	}
	return Coordinate{Lat: la, Lon: lo}, nil
}

// SanitizeAddress normalizes provider or user supplied address text.
func SanitizeAddress(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	if runes := []rune(s); len(runes) > MaxAddressLength {
		s = strings.TrimSpace(string(runes[:MaxAddressLength]))
	}
	return s
}

// AssembleAddress composes a readable label from structured components:
// named place, street, suburb (else city), state. Falls back to the
// provider's display string when none of those are present.
func AssembleAddress(p Place) string {
	locality := p.Suburb
	if strings.TrimSpace(locality) == "" {
		locality = p.City
	}

	parts := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	for _, part := range []string{p.Name, p.Street, locality, p.State} {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return p.DisplayName
	}
	return strings.Join(parts, ", ")
}

// CoordinateLabel renders c at five decimals, used when no readable address
// is available.
func CoordinateLabel(c Coordinate) string {
	return fmt.Sprintf("%.5f, %.5f", c.Lat, c.Lon)
}
