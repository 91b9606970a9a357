package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceError(t *testing.T) {
	assert.ErrorIs(t, DeviceError(CodePermissionDenied), ErrPermissionDenied)
	assert.ErrorIs(t, DeviceError(CodePositionUnavailable), ErrPositionUnavailable)
	assert.ErrorIs(t, DeviceError(CodeTimeout), ErrTimeout)
	assert.ErrorIs(t, DeviceError(0), ErrDeviceLocation)
	assert.ErrorIs(t, DeviceError(42), ErrDeviceLocation)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrPermissionDenied, "permission_denied"},
		{fmt.Errorf("gps: %w", ErrPositionUnavailable), "position_unavailable"},
		{ErrTimeout, "timeout"},
		{ErrDeviceLocation, "device_error"},
		{fmt.Errorf("%w: bad", ErrInvalidCoordinate), "invalid_coordinate"},
		{fmt.Errorf("nominatim: %w", ErrProvider), "provider_error"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}

func TestUserMessage_Distinct(t *testing.T) {
	seen := map[string]error{}
	for _, err := range []error{ErrPermissionDenied, ErrPositionUnavailable, ErrTimeout, ErrDeviceLocation, ErrProvider} {
		msg := UserMessage(err)
		assert.NotEmpty(t, msg)
		_, dup := seen[msg]
		assert.False(t, dup, "message for %v duplicates %v", err, seen[msg])
		seen[msg] = err
	}
	assert.Empty(t, UserMessage(nil))
}
