// Package picker implements the location picker's tab controller: three
// mutually exclusive input modes that all end in one confirmed location.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/iftarinuae/location-resolver/internal/debounce"
	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/observability"
	"github.com/jonboulle/clockwork"
)

// MinQueryLength is the shortest query that is sent to the provider.
const MinQueryLength = 2

var (
	// ErrSuperseded is returned when a newer resolution started before this one finished.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrInactiveMode is returned when an operation does not belong to the current mode.
	ErrInactiveMode = errors.New("operation not available in current mode")

	// ErrNoCandidate is returned when selecting a candidate that is not listed.
	ErrNoCandidate = errors.New("no such candidate")
)

// Resolver performs the lookups behind each mode. *locator.Service satisfies it.
type Resolver interface {
	Search(ctx context.Context, query string) []domain.Candidate
	Select(c domain.Candidate) (domain.ResolvedLocation, error)
	Resolve(ctx context.Context, mode domain.Mode, c domain.Coordinate) (domain.ResolvedLocation, error)
	Locate(ctx context.Context, device domain.DeviceLocator) (domain.ResolvedLocation, error)
}

// Listener is notified of every confirmed resolution, in this order:
// OnChange with the address text, then OnLocationFetched with the location.
type Listener interface {
	OnChange(address string)
	OnLocationFetched(loc domain.ResolvedLocation)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Change  func(address string)
	Fetched func(loc domain.ResolvedLocation)
}

func (f ListenerFuncs) OnChange(address string) {
	if f.Change != nil {
		f.Change(address)
	}
}

func (f ListenerFuncs) OnLocationFetched(loc domain.ResolvedLocation) {
	if f.Fetched != nil {
		f.Fetched(loc)
	}
}

// Options configures a Picker. Zero values pick sensible defaults.
type Options struct {
	Device   domain.DeviceLocator
	Debounce time.Duration
	Clock    clockwork.Clock
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// State is a snapshot of the picker.
type State struct {
	SessionID  string                   `json:"session_id"`
	Mode       domain.Mode              `json:"mode"`
	Query      string                   `json:"query,omitempty"`
	Candidates []domain.Candidate       `json:"candidates,omitempty"`
	Confirmed  *domain.ResolvedLocation `json:"confirmed,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// Picker is safe for concurrent use. Listener callbacks run outside its lock.
type Picker struct {
	id        string
	resolver  Resolver
	device    domain.DeviceLocator
	listener  Listener
	debouncer *debounce.Debouncer
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu         sync.Mutex
	mode       domain.Mode
	query      string
	candidates []domain.Candidate
	confirmed  *domain.ResolvedLocation
	errMsg     string
	searchSeq  uint64
	resolveSeq uint64
}

// New creates a Picker in search mode.
func New(resolver Resolver, listener Listener, opts Options) *Picker {
	if listener == nil {
		listener = ListenerFuncs{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = debounce.DefaultDelay
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	return &Picker{
		id:        id,
		resolver:  resolver,
		device:    opts.Device,
		listener:  listener,
		debouncer: debounce.New(opts.Debounce, opts.Clock),
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("session_id", id),
		mode:      domain.ModeSearch,
	}
}

// SessionID identifies this picker in logs and published events.
func (p *Picker) SessionID() string {
	return p.id
}

// SetMode switches tabs. It clears the error message and keeps the confirmed
// location. Leaving search mode drops a pending search.
func (p *Picker) SetMode(m domain.Mode) error {
	if _, err := domain.ParseMode(string(m)); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode == domain.ModeSearch && m != domain.ModeSearch {
		p.debouncer.Cancel()
		p.searchSeq++
	}
	p.mode = m
	p.errMsg = ""
	return nil
}

// Type records the search box contents and schedules a debounced search.
// Queries shorter than MinQueryLength clear the candidates immediately.
func (p *Picker) Type(ctx context.Context, query string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode != domain.ModeSearch {
		return fmt.Errorf("type: %w", ErrInactiveMode)
	}

	p.query = query
	p.searchSeq++
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		p.debouncer.Cancel()
		p.candidates = nil
		return nil
	}

	seq := p.searchSeq
	if p.debouncer.Schedule(func() { p.runSearch(ctx, seq, q) }) {
		p.metrics.SearchesDeferred.Inc()
	}
	return nil
}

func (p *Picker) runSearch(ctx context.Context, seq uint64, query string) {
	p.metrics.SearchesIssued.Inc()
	p.logger.Debug("search issued", "query", query)

	candidates := p.resolver.Search(ctx, query)

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.searchSeq {
		p.metrics.StaleResponses.WithLabelValues("search").Inc()
		return
	}
	p.candidates = candidates
}

// SelectCandidate confirms the i-th listed candidate.
func (p *Picker) SelectCandidate(i int) (domain.ResolvedLocation, error) {
	p.mu.Lock()
	if p.mode != domain.ModeSearch {
		p.mu.Unlock()
		return domain.ResolvedLocation{}, fmt.Errorf("select: %w", ErrInactiveMode)
	}
	if i < 0 || i >= len(p.candidates) {
		p.mu.Unlock()
		return domain.ResolvedLocation{}, fmt.Errorf("select %d of %d: %w", i, len(p.candidates), ErrNoCandidate)
	}
	c := p.candidates[i]
	p.debouncer.Cancel()
	p.searchSeq++
	p.resolveSeq++
	seq := p.resolveSeq
	p.mu.Unlock()

	loc, err := p.resolver.Select(c)
	return p.finish(seq, domain.ModeSearch, loc, err)
}

// DropPin resolves a map click.
func (p *Picker) DropPin(ctx context.Context, lat, lon float64) (domain.ResolvedLocation, error) {
	seq, err := p.begin(domain.ModePin)
	if err != nil {
		return domain.ResolvedLocation{}, err
	}
	loc, err := p.resolver.Resolve(ctx, domain.ModePin, domain.Coordinate{Lat: lat, Lon: lon})
	return p.finish(seq, domain.ModePin, loc, err)
}

// UseDeviceLocation requests the device position and resolves it.
func (p *Picker) UseDeviceLocation(ctx context.Context) (domain.ResolvedLocation, error) {
	seq, err := p.begin(domain.ModeGPS)
	if err != nil {
		return domain.ResolvedLocation{}, err
	}
	loc, err := p.resolver.Locate(ctx, p.device)
	return p.finish(seq, domain.ModeGPS, loc, err)
}

func (p *Picker) begin(mode domain.Mode) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode != mode {
		return 0, fmt.Errorf("%s: %w", mode, ErrInactiveMode)
	}
	p.resolveSeq++
	return p.resolveSeq, nil
}

// finish applies a resolution unless a newer one has started since.
func (p *Picker) finish(seq uint64, mode domain.Mode, loc domain.ResolvedLocation, err error) (domain.ResolvedLocation, error) {
	p.mu.Lock()
	if seq != p.resolveSeq {
		p.mu.Unlock()
		p.metrics.StaleResponses.WithLabelValues("resolve").Inc()
		p.logger.Debug("discarding stale resolution", "mode", mode)
		return domain.ResolvedLocation{}, ErrSuperseded
	}
	if err != nil {
		p.errMsg = domain.UserMessage(err)
		p.mu.Unlock()
		p.logger.Info("location resolution failed", "mode", mode, "kind", domain.ErrorKind(err))
		return domain.ResolvedLocation{}, err
	}

	confirmed := loc
	p.confirmed = &confirmed
	p.errMsg = ""
	if mode == domain.ModeSearch {
		p.query = loc.Address
		p.candidates = nil
	}
	p.mu.Unlock()

	p.logger.Info("location confirmed", "mode", mode, "lat", loc.Latitude, "lon", loc.Longitude)
	p.listener.OnChange(loc.Address)
	p.listener.OnLocationFetched(loc)
	return loc, nil
}

// State returns a copy of the current state.
func (p *Picker) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := State{
		SessionID: p.id,
		Mode:      p.mode,
		Query:     p.query,
		Error:     p.errMsg,
	}
	if p.candidates != nil {
		s.Candidates = append([]domain.Candidate(nil), p.candidates...)
	}
	if p.confirmed != nil {
		c := *p.confirmed
		s.Confirmed = &c
	}
	return s
}

// Close drops any pending search. In-flight requests finish but are discarded.
func (p *Picker) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debouncer.Cancel()
	p.searchSeq++
	p.resolveSeq++
}
