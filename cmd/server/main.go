package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/iftarinuae/location-resolver/internal/adapter/device"
	"github.com/iftarinuae/location-resolver/internal/adapter/geocache"
	httpadapter "github.com/iftarinuae/location-resolver/internal/adapter/http"
	kafkaadapter "github.com/iftarinuae/location-resolver/internal/adapter/kafka"
	"github.com/iftarinuae/location-resolver/internal/adapter/nominatim"
	"github.com/iftarinuae/location-resolver/internal/adapter/photon"
	"github.com/iftarinuae/location-resolver/internal/config"
	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/locator"
	"github.com/iftarinuae/location-resolver/internal/observability"
	"github.com/iftarinuae/location-resolver/internal/outbox"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	providers := domain.Providers{
		ForwardGeocoder: photon.NewClient(cfg.PhotonURL, cfg.GeocodeUserAgent, cfg.GeocodeTimeout, metrics, logger),
		ReverseGeocoder: nominatim.NewClient(cfg.NominatimURL, cfg.GeocodeUserAgent, cfg.GeocodeTimeout, cfg.NominatimRateLimit, metrics, logger),
	}
	geocoder := geocache.New(providers, cfg.GeocodeCacheSize, metrics)
	logger.Info("geocoding configured",
		"photon_url", cfg.PhotonURL,
		"nominatim_url", cfg.NominatimURL,
		"cache_size", cfg.GeocodeCacheSize,
		"nominatim_rate_limit", cfg.NominatimRateLimit,
	)

	// Confirmed-location events (feature-flagged via KAFKA_ENABLED).
	var (
		publisher locator.Publisher
		writer    *kafkaadapter.Writer
		box       *outbox.Outbox
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		box = outbox.New(writer, outbox.Options{
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.BatchFlushInterval,
		}, logger, metrics)
		publisher = box
		logger.Info("confirmed-location publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("confirmed-location publishing disabled")
	}

	position := domain.DefaultPositionOptions()
	position.Timeout = cfg.DeviceTimeout

	svc := locator.New(geocoder, publisher, position, metrics, logger)
	clock := clockwork.NewRealClock()
	devices := func(src device.Source) domain.DeviceLocator {
		return device.NewLocator(src, clock, metrics, logger)
	}

	checks := []sharedobs.ReadinessChecker{svc}
	if box != nil {
		checks = append(checks, box)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, devices, httpadapter.AllReady(checks...), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start confirmation outbox. It outlives the request context so queued
	// confirmations from draining requests still get written.
	var wg sync.WaitGroup
	boxCtx, stopBox := context.WithCancel(context.Background())
	defer stopBox()
	if box != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := box.Run(boxCtx); err != nil {
				logger.Error("outbox error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	svc.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	stopBox()
	wg.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
