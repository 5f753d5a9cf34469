package saar

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/glider-data-etl/internal/domain"
)

// Positions are quantized before lookup so neighbouring samples along a
// dive share a cache entry. The anomaly ratio varies on scales far larger
// than these steps.
const (
	positionStep = 1e-3 // degrees
	pressureStep = 1.0  // dbar
)

// CachedSource wraps an AnomalySource with an in-memory LRU cache.
type CachedSource struct {
	inner  domain.AnomalySource
	cache  *lruCache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedSource creates a cache decorator around an anomaly source.
func NewCachedSource(inner domain.AnomalySource, maxEntries int) *CachedSource {
	return &CachedSource{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedSource) AnomalyRatio(ctx context.Context, p, lon, lat float64) (float64, error) {
	p, lon, lat = quantize(p, pressureStep), quantize(lon, positionStep), quantize(lat, positionStep)
	key := fmt.Sprintf("%.3f,%.3f,%.0f", lon, lat, p)
	if v, ok := c.cache.get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err := c.inner.AnomalyRatio(ctx, p, lon, lat)
	if err != nil {
		return 0, err
	}
	c.cache.put(key, v)
	return v, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *CachedSource) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func quantize(x, step float64) float64 {
	return math.Round(x/step) * step
}

// lruCache is a thread-safe LRU of anomaly ratios keyed by quantized
// position. The front of order is the most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[string]*list.Element
}

type entry struct {
	key   string
	value float64
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
