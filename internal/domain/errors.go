package domain

import "errors"

// Device location failures, following the W3C GeolocationPositionError codes.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("location unavailable")
	ErrTimeout             = errors.New("location request timed out")
	ErrDeviceLocation      = errors.New("device location failed")
)

var (
	// ErrProvider marks a network failure or non-success response from a
	// geocoding provider.
	ErrProvider = errors.New("geocoding provider error")

	// ErrInvalidCoordinate marks a non-finite or out-of-range pair.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Device position error codes as reported by browsers.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// DeviceError maps a browser position error code to its sentinel.
func DeviceError(code int) error {
	switch code {
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodePositionUnavailable:
		return ErrPositionUnavailable
	case CodeTimeout:
		return ErrTimeout
	default:
		return ErrDeviceLocation
	}
}

// ErrorKind returns a stable label for err, used in metrics and API bodies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrPositionUnavailable):
		return "position_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDeviceLocation):
		return "device_error"
	case errors.Is(err, ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	default:
		return "unknown"
	}
}

// UserMessage returns the short message shown in place of a failed action.
func UserMessage(err error) string {
	switch ErrorKind(err) {
	case "":
		return ""
	case "permission_denied":
		return "Location access was denied. Allow location access or search for the place instead."
	case "position_unavailable":
		return "Your location is currently unavailable. Try again or drop a pin on the map."
	case "timeout":
		return "Getting your location took too long. Try again or drop a pin on the map."
	case "device_error":
		return "Could not get your location."
	case "invalid_coordinate":
		return "That location is not valid."
	default:
		return "Could not look up that location. Please try again."
	}
}
