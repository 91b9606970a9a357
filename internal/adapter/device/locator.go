package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Source produces a single position fix from the platform.
type Source func(ctx context.Context) (domain.Coordinate, error)

// Locator implements domain.DeviceLocator on top of a Source. It enforces the
// requested timeout and classifies failures; it never retries.
type Locator struct {
	source  Source
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewLocator creates a Locator. A nil clock uses real time.
func NewLocator(source Source, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Locator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Locator{source: source, clock: clock, metrics: metrics, logger: logger}
}

type fix struct {
	coord domain.Coordinate
	err   error
}

// CurrentPosition asks the source for a fresh fix. MaximumAge is ignored:
// sources never hand out cached positions.
func (l *Locator) CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Coordinate, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan fix, 1)
	go func() {
		c, err := l.source(ctx)
		done <- fix{coord: c, err: err}
	}()

	var expired <-chan time.Time
	if opts.Timeout > 0 {
		timer := l.clock.NewTimer(opts.Timeout)
		defer timer.Stop()
		expired = timer.Chan()
	}

	var (
		coord domain.Coordinate
		err   error
	)
	select {
	case f := <-done:
		coord, err = f.coord, classify(f.err)
		if err == nil && !coord.Valid() {
			err = fmt.Errorf("%w: device reported (%v, %v)", domain.ErrPositionUnavailable, coord.Lat, coord.Lon)
		}
	case <-expired:
		err = fmt.Errorf("%w after %s", domain.ErrTimeout, opts.Timeout)
	case <-ctx.Done():
		err = classify(ctx.Err())
	}

	if err != nil {
		kind := domain.ErrorKind(err)
		l.metrics.DeviceErrors.WithLabelValues(kind).Inc()
		l.logger.Info("device location failed", "kind", kind, "error", err)
		return domain.Coordinate{}, err
	}
	return coord, nil
}

// classify maps arbitrary source errors onto the device error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, domain.ErrPositionUnavailable),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrDeviceLocation):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrDeviceLocation, err)
	}
}
