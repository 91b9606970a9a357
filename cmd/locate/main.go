// Command locate is an interactive terminal location picker. It runs the same
// search, pin and GPS flows as the web picker against the configured providers.
//
// Usage:
//
//	go run ./cmd/locate -device 25.2048,55.2708
//
// Typed text is a search query. Commands start with a colon:
//
//	:search | :pin | :gps   switch mode
//	:list                   show search candidates
//	:pick N                 confirm the N-th candidate
//	:drop LAT LON           drop a pin
//	:locate                 use the device location
//	:state                  print the picker state
//	:quit                   exit
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/iftarinuae/location-resolver/internal/adapter/device"
	"github.com/iftarinuae/location-resolver/internal/adapter/geocache"
	kafkaadapter "github.com/iftarinuae/location-resolver/internal/adapter/kafka"
	"github.com/iftarinuae/location-resolver/internal/adapter/nominatim"
	"github.com/iftarinuae/location-resolver/internal/adapter/photon"
	"github.com/iftarinuae/location-resolver/internal/config"
	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/locator"
	"github.com/iftarinuae/location-resolver/internal/observability"
	"github.com/iftarinuae/location-resolver/internal/picker"
	"github.com/jonboulle/clockwork"
)

func main() {
	deviceSpec := flag.String("device", "", `simulated device: "lat,lon", "denied", "unavailable" or "timeout"`)
	logLevel := flag.String("log-level", "warn", "log level written to stderr")
	flag.Parse()

	if err := run(*deviceSpec, *logLevel, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(deviceSpec, logLevel string, in io.Reader, out io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	src, err := device.ParseSource(deviceSpec)
	if err != nil {
		return err
	}

	logger := observability.NewLoggerTo(os.Stderr, logLevel, "text")
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()

	providers := domain.Providers{
		ForwardGeocoder: photon.NewClient(cfg.PhotonURL, cfg.GeocodeUserAgent, cfg.GeocodeTimeout, metrics, logger),
		ReverseGeocoder: nominatim.NewClient(cfg.NominatimURL, cfg.GeocodeUserAgent, cfg.GeocodeTimeout, cfg.NominatimRateLimit, metrics, logger),
	}

	var publisher locator.Publisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer writer.Close() //nolint:errcheck // best-effort on exit
		publisher = writer
	}

	position := domain.DefaultPositionOptions()
	position.Timeout = cfg.DeviceTimeout
	svc := locator.New(geocache.New(providers, cfg.GeocodeCacheSize, metrics), publisher, position, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var p *picker.Picker
	listener := picker.ListenerFuncs{
		Change: func(address string) {
			fmt.Fprintf(out, "address: %s\n", address)
		},
		Fetched: func(loc domain.ResolvedLocation) {
			confirmed, err := svc.Confirm(ctx, p.SessionID(), p.State().Mode, loc)
			if err != nil {
				fmt.Fprintln(out, "confirm failed:", domain.UserMessage(err))
				return
			}
			printJSON(out, confirmed)
		},
	}
	p = picker.New(svc, listener, picker.Options{
		Device:   device.NewLocator(src, clock, metrics, logger),
		Debounce: cfg.SearchDebounce,
		Clock:    clock,
		Metrics:  metrics,
		Logger:   logger,
	})
	defer p.Close()

	fmt.Fprintf(out, "session %s, mode %s (type :quit to exit)\n", p.SessionID(), p.State().Mode)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handle(ctx, p, strings.TrimSpace(line), out); quit {
				return nil
			}
		}
	}
}

// handle executes one input line and reports whether the session should end.
func handle(ctx context.Context, p *picker.Picker, line string, out io.Writer) bool {
	if !strings.HasPrefix(line, ":") {
		report(out, p.Type(ctx, line))
		return false
	}

	fields := strings.Fields(line)
	switch cmd, args := fields[0], fields[1:]; cmd {
	case ":quit", ":q":
		return true
	case ":search", ":pin", ":gps":
		report(out, p.SetMode(domain.Mode(strings.TrimPrefix(cmd, ":"))))
	case ":list":
		for i, c := range p.State().Candidates {
			fmt.Fprintf(out, "%d. %s (%.5f, %.5f)\n", i+1, c.Address, c.Lat, c.Lon)
		}
	case ":pick":
		n, err := intArg(args)
		if err != nil {
			report(out, err)
			return false
		}
		_, err = p.SelectCandidate(n - 1)
		report(out, err)
	case ":drop":
		lat, lon, err := coordArgs(args)
		if err != nil {
			report(out, err)
			return false
		}
		_, err = p.DropPin(ctx, lat, lon)
		report(out, err)
	case ":locate":
		_, err := p.UseDeviceLocation(ctx)
		report(out, err)
	case ":state":
		printJSON(out, p.State())
	default:
		fmt.Fprintf(out, "unknown command %s\n", cmd)
	}
	return false
}

var errUsage = errors.New("usage")

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: :pick N", errUsage)
	}
	return strconv.Atoi(args[0])
}

func coordArgs(args []string) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%w: :drop LAT LON", errUsage)
	}
	c, err := domain.ParseCoordinate(args[0], args[1])
	if err != nil {
		return 0, 0, err
	}
	return c.Lat, c.Lon, nil
}

func report(out io.Writer, err error) {
	switch {
	case err == nil:
	case errors.Is(err, picker.ErrInactiveMode), errors.Is(err, picker.ErrNoCandidate), errors.Is(err, errUsage):
		fmt.Fprintln(out, err)
	default:
		if msg := domain.UserMessage(err); msg != "" && domain.ErrorKind(err) != "unknown" {
			fmt.Fprintln(out, msg)
			return
		}
		fmt.Fprintln(out, err)
	}
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode output", "error", err)
	}
}
