package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/waterwatch-service/internal/observability"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// AuxSource provides the immutable auxiliary layers.
type AuxSource interface {
	Elevation(ctx context.Context, bound orb.Bound) (raster.Layer, error)
	CloudProbability(ctx context.Context, sceneID string) (raster.Layer, error)
}

// CachedAux wraps an AuxSource with in-memory LRU caches. Terrain and
// per-scene cloud probability never change once published, so entries do
// not expire. Errors are not cached.
type CachedAux struct {
	inner       AuxSource
	elevation   *lruCache[raster.Layer]
	probability *lruCache[raster.Layer]
	metrics     *observability.Metrics
}

// NewCachedAux creates a cache decorator holding up to maxEntries layers of
// each kind.
func NewCachedAux(inner AuxSource, maxEntries int, metrics *observability.Metrics) *CachedAux {
	return &CachedAux{
		inner:       inner,
		elevation:   newLRUCache[raster.Layer](maxEntries),
		probability: newLRUCache[raster.Layer](maxEntries),
		metrics:     metrics,
	}
}

func (c *CachedAux) Elevation(ctx context.Context, bound orb.Bound) (raster.Layer, error) {
	key := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
	return c.lookup(c.elevation, "elevation", key, func() (raster.Layer, error) {
		return c.inner.Elevation(ctx, bound)
	})
}

func (c *CachedAux) CloudProbability(ctx context.Context, sceneID string) (raster.Layer, error) {
	return c.lookup(c.probability, "cloud_probability", sceneID, func() (raster.Layer, error) {
		return c.inner.CloudProbability(ctx, sceneID)
	})
}

func (c *CachedAux) lookup(cache *lruCache[raster.Layer], layer, key string, fetch func() (raster.Layer, error)) (raster.Layer, error) {
	if l, ok := cache.get(key); ok {
		c.metrics.AuxCache.WithLabelValues(layer, "hit").Inc()
		return l, nil
	}
	c.metrics.AuxCache.WithLabelValues(layer, "miss").Inc()
	l, err := fetch()
	if err != nil {
		return l, err
	}
	cache.put(key, l)
	return l, nil
}

// lruCache is a thread-safe LRU cache.
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

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
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

func (c *lruCache[V]) unlink(e *entry[V]) {
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
	c.unlink(c.tail)
}
