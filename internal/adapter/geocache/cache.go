package geocache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/iftarinuae/location-resolver/internal/observability"
)

// Geocoder wraps a domain.Geocoder with in-memory LRU caches for both
// directions.
type Geocoder struct {
	inner   domain.Geocoder
	forward *lruCache[[]domain.Place]
	reverse *lruCache[domain.Place]
	metrics *observability.Metrics
}

// New creates a cache decorator holding up to maxEntries results per direction.
func New(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *Geocoder {
	return &Geocoder{
		inner:   inner,
		forward: newLRUCache[[]domain.Place](maxEntries),
		reverse: newLRUCache[domain.Place](maxEntries),
		metrics: metrics,
	}
}

func (g *Geocoder) Search(ctx context.Context, query string) ([]domain.Place, error) {
	key := "fwd:" + strings.ToLower(strings.TrimSpace(query))
	if places, ok := g.forward.get(key); ok {
		g.metrics.GeocodeCache.WithLabelValues("forward", "hit").Inc()
		return places, nil
	}
	g.metrics.GeocodeCache.WithLabelValues("forward", "miss").Inc()

	places, err := g.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so "not found" can be retried.
	if len(places) > 0 {
		g.forward.put(key, places)
	}
	return places, nil
}

func (g *Geocoder) Reverse(ctx context.Context, c domain.Coordinate) (domain.Place, error) {
	// Five decimals is roughly 1m, the precision of the fallback label.
	key := fmt.Sprintf("rev:%.5f,%.5f", c.Lat, c.Lon)
	if place, ok := g.reverse.get(key); ok {
		g.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		place.Coordinate = c
		return place, nil
	}
	g.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	place, err := g.inner.Reverse(ctx, c)
	if err != nil {
		return place, err
	}
	if domain.AssembleAddress(place) != "" {
		g.reverse.put(key, place)
	}
	return place, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
