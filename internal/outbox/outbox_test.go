package outbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/observability"
	"github.com/iftarinuae/location-resolver/internal/outbox"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLoader struct {
	mu      sync.Mutex
	batches [][]domain.LocationConfirmed
	errs    []error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.LocationConfirmed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}
	m.batches = append(m.batches, append([]domain.LocationConfirmed(nil), events...))
	return nil
}

func (m *mockLoader) loaded() [][]domain.LocationConfirmed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.LocationConfirmed(nil), m.batches...)
}

func (m *mockLoader) count() int {
	n := 0
	for _, b := range m.loaded() {
		n += len(b)
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func confirmation(session string) domain.LocationConfirmed {
	return domain.LocationConfirmed{
		SessionID: session,
		Mode:      domain.ModePin,
		Location:  domain.NewResolvedLocation("", domain.Coordinate{Lat: 25.2, Lon: 55.3}),
	}
}

func start(t *testing.T, o *outbox.Outbox) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return o.CheckReadiness(ctx) == nil }, time.Second, time.Millisecond)
	return func() {
		cancelCtx()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("outbox did not stop")
		}
	}
}

// --- tests ---

func TestOutbox_FlushesFullBatch(t *testing.T) {
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	o := outbox.New(ldr, outbox.Options{BatchSize: 2, Clock: clockwork.NewFakeClock()}, discardLogger(), metrics)
	stop := start(t, o)
	defer stop()

	require.NoError(t, o.Publish(context.Background(), confirmation("a")))
	require.NoError(t, o.Publish(context.Background(), confirmation("b")))

	require.Eventually(t, func() bool { return ldr.count() == 2 }, time.Second, time.Millisecond)
	batches := ldr.loaded()
	require.Len(t, batches, 1)
	assert.Equal(t, "a", batches[0][0].SessionID)
	assert.Equal(t, "b", batches[0][1].SessionID)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LocationsPublished), 0)
}

func TestOutbox_FlushesOnInterval(t *testing.T) {
	ldr := &mockLoader{}
	fc := clockwork.NewFakeClock()
	o := outbox.New(ldr, outbox.Options{BatchSize: 10, FlushInterval: time.Second, Clock: fc},
		discardLogger(), observability.NewMetricsForTesting())
	stop := start(t, o)
	defer stop()

	require.NoError(t, o.Publish(context.Background(), confirmation("a")))

	require.Eventually(t, func() bool {
		fc.Advance(time.Second)
		return ldr.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOutbox_RetriesFailedBatch(t *testing.T) {
	ldr := &mockLoader{errs: []error{errors.New("leader not available")}}
	metrics := observability.NewMetricsForTesting()
	o := outbox.New(ldr, outbox.Options{BatchSize: 1, Clock: clockwork.NewFakeClock()}, discardLogger(), metrics)
	stop := start(t, o)
	defer stop()

	require.NoError(t, o.Publish(context.Background(), confirmation("a")))

	require.Eventually(t, func() bool { return ldr.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishErrors), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LocationsPublished), 0)
}

func TestOutbox_DrainsOnShutdown(t *testing.T) {
	ldr := &mockLoader{}
	o := outbox.New(ldr, outbox.Options{BatchSize: 10, Clock: clockwork.NewFakeClock()},
		discardLogger(), observability.NewMetricsForTesting())

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, o.Publish(context.Background(), confirmation(s)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, o.Run(ctx))

	batches := ldr.loaded()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Error(t, o.CheckReadiness(context.Background()))
}

func TestOutbox_FinalFlushFailureCountsDropped(t *testing.T) {
	ldr := &mockLoader{errs: []error{errors.New("broker down")}}
	metrics := observability.NewMetricsForTesting()
	o := outbox.New(ldr, outbox.Options{BatchSize: 10, Clock: clockwork.NewFakeClock()}, discardLogger(), metrics)

	require.NoError(t, o.Publish(context.Background(), confirmation("a")))
	require.NoError(t, o.Publish(context.Background(), confirmation("b")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, o.Run(ctx))

	assert.Empty(t, ldr.loaded())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ConfirmationsDropped), 0)
}

func TestOutbox_QueueFull(t *testing.T) {
	o := outbox.New(&mockLoader{}, outbox.Options{BatchSize: 1, QueueSize: 1},
		discardLogger(), observability.NewMetricsForTesting())

	require.NoError(t, o.Publish(context.Background(), confirmation("a")))
	require.ErrorIs(t, o.Publish(context.Background(), confirmation("b")), outbox.ErrQueueFull)
}

func TestOutbox_NotReadyBeforeRun(t *testing.T) {
	o := outbox.New(&mockLoader{}, outbox.Options{}, discardLogger(), observability.NewMetricsForTesting())
	assert.Error(t, o.CheckReadiness(context.Background()))
}
