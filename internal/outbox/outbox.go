// Package outbox decouples confirmation requests from the event topic. It
// queues confirmed locations and writes them in batches, retrying with backoff.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

var (
	// ErrQueueFull is returned by Publish when the queue has no room.
	ErrQueueFull = errors.New("outbox queue full")

	errNotRunning = errors.New("outbox is not running")
)

// BatchLoader writes multiple confirmations to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.LocationConfirmed) error
}

// Options tunes batching. Zero values pick defaults.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
	Clock         clockwork.Clock
}

// Outbox implements locator.Publisher without blocking the caller.
type Outbox struct {
	loader        BatchLoader
	queue         chan domain.LocationConfirmed
	batchSize     int
	flushInterval time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger
	metrics       *observability.Metrics
	running       atomic.Bool
}

// New creates an Outbox. Call Run to start writing.
func New(loader BatchLoader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Outbox {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.QueueSize < opts.BatchSize {
		opts.QueueSize = opts.BatchSize * 4
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Outbox{
		loader:        loader,
		queue:         make(chan domain.LocationConfirmed, opts.QueueSize),
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		clock:         opts.Clock,
		logger:        logger,
		metrics:       metrics,
	}
}

// Publish queues evt for the next batch.
func (o *Outbox) Publish(_ context.Context, evt domain.LocationConfirmed) error {
	select {
	case o.queue <- evt:
		return nil
	default:
		return ErrQueueFull
	}
}

// CheckReadiness returns an error unless Run is active.
func (o *Outbox) CheckReadiness(_ context.Context) error {
	if !o.running.Load() {
		return errNotRunning
	}
	return nil
}

// Run writes queued confirmations until ctx is cancelled, then makes one
// final attempt to write whatever is still queued.
func (o *Outbox) Run(ctx context.Context) error {
	o.logger.Info("outbox started", "batch_size", o.batchSize, "flush_interval", o.flushInterval)
	o.running.Store(true)
	o.metrics.PublisherRunning.Set(1)
	defer func() {
		o.running.Store(false)
		o.metrics.PublisherRunning.Set(0)
	}()

	ticker := o.clock.NewTicker(o.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.LocationConfirmed, 0, o.batchSize)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("outbox stopping", "reason", ctx.Err())
			o.drain(context.WithoutCancel(ctx), batch)
			return nil
		case evt := <-o.queue:
			batch = append(batch, evt)
			if len(batch) >= o.batchSize {
				batch = o.flush(ctx, batch)
			}
		case <-ticker.Chan():
			if len(batch) > 0 {
				batch = o.flush(ctx, batch)
			}
		}
	}
}

// flush writes batch, retrying until it succeeds or ctx ends. It returns the
// emptied batch, or the unwritten one when ctx ended first.
func (o *Outbox) flush(ctx context.Context, batch []domain.LocationConfirmed) []domain.LocationConfirmed {
	backoff := initialBackoff
	for {
		err := o.loader.LoadBatch(ctx, batch)
		if err == nil {
			o.metrics.LocationsPublished.Add(float64(len(batch)))
			o.metrics.PublishBatchSize.Observe(float64(len(batch)))
			return batch[:0]
		}

		o.metrics.PublishErrors.Inc()
		o.logger.Error("load batch failed", "error", err, "batch_size", len(batch))
		if ctx.Err() != nil || !sharedretry.SleepWithContext(ctx, backoff) {
			return batch
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
}

// drain collects everything still queued and writes it once.
func (o *Outbox) drain(ctx context.Context, batch []domain.LocationConfirmed) {
collect:
	for {
		select {
		case evt := <-o.queue:
			batch = append(batch, evt)
		default:
			break collect
		}
	}
	if len(batch) == 0 {
		return
	}

	if err := o.loader.LoadBatch(ctx, batch); err != nil {
		o.metrics.PublishErrors.Inc()
		o.metrics.ConfirmationsDropped.Add(float64(len(batch)))
		o.logger.Error("final flush failed, dropping confirmations", "error", err, "count", len(batch))
		return
	}
	o.metrics.LocationsPublished.Add(float64(len(batch)))
	o.metrics.PublishBatchSize.Observe(float64(len(batch)))
}
