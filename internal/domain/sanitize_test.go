package domain

import (
	"math"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		want bool
	}{
		{"dubai", 25.2048, 55.2708, true},
		{"origin", 0, 0, true},
		{"north pole", 90, 0, true},
		{"south pole", -90, 0, true},
		{"antimeridian east", 0, 180, true},
		{"antimeridian west", 0, -180, true},
		{"lat too high", 90.0001, 0, false},
		{"lat too low", -90.0001, 0, false},
		{"lon too high", 0, 180.0001, false},
		{"lon too low", 0, -180.0001, false},
		{"lat NaN", math.NaN(), 55, false},
		{"lon NaN", 25, math.NaN(), false},
		{"lat +Inf", math.Inf(1), 55, false},
		{"lon -Inf", 25, math.Inf(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCoordinate(tt.lat, tt.lon))
		})
	}
}

func TestValidCoordinate_Sweep(t *testing.T) {
	for lat := -100.0; lat <= 100; lat += 2.5 {
		for lon := -200.0; lon <= 200; lon += 5 {
			want := lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
			assert.Equal(t, want, ValidCoordinate(lat, lon), "(%v, %v)", lat, lon)
		}
	}
}

func TestParseCoordinate(t *testing.T) {
	t.Run("valid pair", func(t *testing.T) {
		c, err := ParseCoordinate(" 25.2 ", "55.3")
		require.NoError(t, err)
		assert.Equal(t, Coordinate{Lat: 25.2, Lon: 55.3}, c)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := ParseCoordinate("abc", "55.3")
		require.ErrorIs(t, err, ErrInvalidCoordinate)
		assert.Contains(t, err.Error(), "latitude")
	})

	t.Run("NaN literal", func(t *testing.T) {
		_, err := ParseCoordinate("NaN", "55.3")
		require.ErrorIs(t, err, ErrInvalidCoordinate)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := ParseCoordinate("25.2", "190")
		require.ErrorIs(t, err, ErrInvalidCoordinate)
	})
}

func TestSanitizeAddress(t *testing.T) {
	t.Run("strips control characters and trims", func(t *testing.T) {
		got := SanitizeAddress("  Al Fahidi\x00 Street\x1b, Dubai\x7f\u0085\n ")
		assert.Equal(t, "Al Fahidi Street, Dubai", got)
	})

	t.Run("keeps arabic text", func(t *testing.T) {
		assert.Equal(t, "دبي مول", SanitizeAddress("دبي مول"))
	})

	t.Run("normalizes to NFC", func(t *testing.T) {
		decomposed := "Cafe\u0301"
		assert.Equal(t, "Caf\u00e9", SanitizeAddress(decomposed))
	})

	t.Run("truncates long input", func(t *testing.T) {
		got := SanitizeAddress(strings.Repeat("ب", 500))
		assert.Equal(t, MaxAddressLength, utf8.RuneCountInString(got))
	})

	t.Run("no trailing space after truncation", func(t *testing.T) {
		got := SanitizeAddress(strings.Repeat("a", MaxAddressLength-1) + " tail")
		assert.Equal(t, strings.Repeat("a", MaxAddressLength-1), got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, SanitizeAddress(" \t\r\n"))
	})
}

func TestSanitizeAddress_Bounds(t *testing.T) {
	inputs := []string{
		"",
		"Burj Khalifa",
		strings.Repeat("x\x01", 400),
		strings.Repeat(" \u009f", 200) + "Jumeirah",
		strings.Repeat("مطعم ", 120),
		"line1\r\nline2\tend",
	}
	for b := 0; b < 0x100; b++ {
		inputs = append(inputs, "Deira"+string(rune(b))+"Souq")
	}

	for _, in := range inputs {
		got := SanitizeAddress(in)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxAddressLength)
		for _, r := range got {
			assert.False(t, unicode.IsControl(r), "control rune %U in %q", r, got)
		}
	}
}

func TestAssembleAddress(t *testing.T) {
	tests := []struct {
		name  string
		place Place
		want  string
	}{
		{
			name:  "all components",
			place: Place{Name: "Burj Khalifa", Street: "Sheikh Mohammed bin Rashid Blvd", Suburb: "Downtown Dubai", City: "Dubai", State: "Dubai"},
			want:  "Burj Khalifa, Sheikh Mohammed bin Rashid Blvd, Downtown Dubai, Dubai",
		},
		{
			name:  "city when suburb missing",
			place: Place{Street: "Corniche Road", City: "Abu Dhabi", State: "Abu Dhabi Emirate"},
			want:  "Corniche Road, Abu Dhabi, Abu Dhabi Emirate",
		},
		{
			name:  "repeated component collapsed",
			place: Place{Name: "Sharjah", City: "sharjah", State: "Sharjah"},
			want:  "Sharjah",
		},
		{
			name:  "state only",
			place: Place{State: "Fujairah", DisplayName: "ignored"},
			want:  "Fujairah",
		},
		{
			name:  "display name fallback",
			place: Place{Country: "United Arab Emirates", DisplayName: "Some Place, UAE"},
			want:  "Some Place, UAE",
		},
		{
			name:  "whitespace components ignored",
			place: Place{Name: "  ", Street: "Al Wasl Road", Suburb: " "},
			want:  "Al Wasl Road",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssembleAddress(tt.place))
		})
	}
}

func TestCoordinateLabel(t *testing.T) {
	assert.Equal(t, "25.20000, 55.30000", CoordinateLabel(Coordinate{Lat: 25.2, Lon: 55.3}))
	assert.Equal(t, "-0.00001, 179.12346", CoordinateLabel(Coordinate{Lat: -0.00001, Lon: 179.123456}))
}
