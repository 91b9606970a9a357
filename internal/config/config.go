package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/iftarinuae/location-resolver/internal/adapter/nominatim"
	"github.com/iftarinuae/location-resolver/internal/adapter/photon"
	"github.com/iftarinuae/location-resolver/internal/debounce"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Geocoding providers.
	PhotonURL          string
	NominatimURL       string
	GeocodeUserAgent   string
	GeocodeTimeout     time.Duration
	GeocodeCacheSize   int
	NominatimRateLimit float64

	SearchDebounce time.Duration
	DeviceTimeout  time.Duration

	// Confirmed-location events.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	searchDebounce, err := parseDuration("SEARCH_DEBOUNCE", debounce.DefaultDelay.String())
	if err != nil {
		return nil, err
	}

	deviceTimeout, err := parseDuration("DEVICE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("NOMINATIM_RATE_LIMIT", "1"), 64)
	if err != nil || rateLimit < 0 {
		return nil, errors.New("invalid NOMINATIM_RATE_LIMIT")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PhotonURL:          sharedcfg.EnvOrDefault("PHOTON_URL", photon.DefaultBaseURL),
		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", nominatim.DefaultBaseURL),
		GeocodeUserAgent:   sharedcfg.EnvOrDefault("GEOCODE_USER_AGENT", nominatim.DefaultUserAgent),
		GeocodeTimeout:     geocodeTimeout,
		GeocodeCacheSize:   parseCacheSize(),
		NominatimRateLimit: rateLimit,

		SearchDebounce: searchDebounce,
		DeviceTimeout:  deviceTimeout,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "iftar-locations-confirmed"),

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.PhotonURL == "" {
		return nil, errors.New("PHOTON_URL is required")
	}
	if cfg.NominatimURL == "" {
		return nil, errors.New("NOMINATIM_URL is required")
	}
	if cfg.GeocodeUserAgent == "" {
		return nil, errors.New("GEOCODE_USER_AGENT is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given files, ".env" by default.
// Variables already set in the environment win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
