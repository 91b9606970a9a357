package device

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Position(t *testing.T) {
	t.Run("fix", func(t *testing.T) {
		var r Report
		require.NoError(t, json.Unmarshal([]byte(`{"latitude":25.2,"longitude":55.3,"accuracy":12}`), &r))

		c, err := r.Position()
		require.NoError(t, err)
		assert.Equal(t, domain.Coordinate{Lat: 25.2, Lon: 55.3}, c)
	})

	t.Run("permission denied", func(t *testing.T) {
		var r Report
		require.NoError(t, json.Unmarshal([]byte(`{"error":{"code":1,"message":"User denied Geolocation"}}`), &r))

		_, err := r.Position()
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
		assert.Contains(t, err.Error(), "User denied Geolocation")
	})

	t.Run("timeout code", func(t *testing.T) {
		r := Report{Error: &ReportError{Code: domain.CodeTimeout}}
		_, err := r.Position()
		require.ErrorIs(t, err, domain.ErrTimeout)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Report{}.Position()
		require.ErrorIs(t, err, domain.ErrDeviceLocation)
	})
}

func TestReport_Source(t *testing.T) {
	lat, lon := 24.4539, 54.3773
	c, err := Report{Latitude: &lat, Longitude: &lon}.Source()(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: lat, Lon: lon}, c)
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("25.2, 55.3")
	require.NoError(t, err)
	c, err := src(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 25.2, Lon: 55.3}, c)

	src, err = ParseSource("denied")
	require.NoError(t, err)
	_, err = src(context.Background())
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	src, err = ParseSource("Unavailable")
	require.NoError(t, err)
	_, err = src(context.Background())
	require.ErrorIs(t, err, domain.ErrPositionUnavailable)

	_, err = ParseSource("timeout")
	require.NoError(t, err)

	_, err = ParseSource("north")
	require.Error(t, err)

	_, err = ParseSource("95,55")
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}
