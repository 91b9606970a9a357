// Package domain models location resolution for Iftar spot submissions.
//
// # Input Modes
//
// A submitter locates a spot in one of three ways:
//
//	search  typed text, forward geocoded through Photon
//	pin     a map click, reverse geocoded through Nominatim
//	gps     the device position, reverse geocoded through Nominatim
//
// Every mode produces the same [ResolvedLocation]. The hosting form never
// learns which mode produced it.
//
// # Coordinates
//
// Coordinates are WGS-84 degrees. A pair is valid when both values are
// finite, latitude lies in [-90, 90] and longitude in [-180, 180]. See
// [ValidCoordinate]. Provider results with invalid pairs are dropped without
// surfacing an error: they indicate a provider defect, not something the
// submitter can act on.
//
// Latitude and longitude travel as strings in a [ResolvedLocation] using the
// shortest decimal rendering of the float, e.g. 25.2 -> "25.2".
//
// # Addresses
//
// Addresses coming back from providers are untrusted free text. They are
// NFC-normalized, stripped of control characters, trimmed and capped at
// [MaxAddressLength] runes by [SanitizeAddress] before they reach state.
//
// Structured components are assembled by [AssembleAddress] in the order
// named place, street, suburb (else city), state. When a reverse lookup
// fails the address falls back to the coordinate pair at five decimals,
// e.g. "25.20000, 55.30000". See [CoordinateLabel].
//
// # Search Area
//
// Forward search is biased to [UAEBounds]:
//
//	min lon 51.5, min lat 22.6, max lon 56.4, max lat 26.1
package domain
