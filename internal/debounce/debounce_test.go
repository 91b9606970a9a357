package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects task invocations from timer goroutines.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fired chan string
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan string, 16)}
}

func (r *recorder) task(q string) func() {
	return func() {
		r.mu.Lock()
		r.calls = append(r.calls, q)
		r.mu.Unlock()
		r.fired <- q
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case q := <-r.fired:
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("debounced task did not run")
		return ""
	}
}

func TestDebouncer_OnlyLastKeystrokeFires(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(DefaultDelay, fc)
	rec := newRecorder()

	assert.False(t, d.Schedule(rec.task("a")))
	fc.Advance(100 * time.Millisecond)
	assert.True(t, d.Schedule(rec.task("ab")))
	fc.Advance(100 * time.Millisecond)
	assert.True(t, d.Schedule(rec.task("abc")))

	fc.Advance(299 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "nothing fires before the pause completes")
	assert.True(t, d.Pending())

	fc.Advance(time.Millisecond)
	assert.Equal(t, "abc", rec.wait(t))
	assert.Equal(t, []string{"abc"}, rec.snapshot())
	assert.Eventually(t, func() bool { return !d.Pending() }, time.Second, time.Millisecond)
}

func TestDebouncer_SeparatePausesFireSeparately(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(DefaultDelay, fc)
	rec := newRecorder()

	d.Schedule(rec.task("dubai"))
	fc.Advance(DefaultDelay)
	require.Equal(t, "dubai", rec.wait(t))

	d.Schedule(rec.task("dubai mall"))
	fc.Advance(DefaultDelay)
	require.Equal(t, "dubai mall", rec.wait(t))

	assert.Equal(t, []string{"dubai", "dubai mall"}, rec.snapshot())
}

func TestDebouncer_Cancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(DefaultDelay, fc)
	rec := newRecorder()

	assert.False(t, d.Cancel(), "nothing pending yet")

	d.Schedule(rec.task("sharjah"))
	assert.True(t, d.Cancel())
	assert.False(t, d.Pending())

	fc.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestDebouncer_RealClock(t *testing.T) {
	d := New(10*time.Millisecond, nil)
	rec := newRecorder()

	d.Schedule(rec.task("x"))
	d.Schedule(rec.task("xy"))

	assert.Equal(t, "xy", rec.wait(t))
}
