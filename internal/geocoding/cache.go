package geocoding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoadTimeout bounds a single shared load.
const LoadTimeout = 30 * time.Second

// Loader fetches the value of a key missing from a LookupCache.
// Returning cacheable=false hands the value to the caller without storing it.
type Loader[V any] func(ctx context.Context) (value V, cacheable bool, err error)

// LookupCache is a fixed-capacity, least-recently-used cache of lookup results
// keyed by normalized query text. It is safe for concurrent use.
type LookupCache[V any] struct {
	name    string
	entries *lru.Cache[string, V]
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewLookupCache creates a cache holding at most capacity entries. name labels its metrics.
func NewLookupCache[V any](name string, capacity int, m *metrics.Metrics) (*LookupCache[V], error) {
	entries, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", name, err)
	}

	return &LookupCache[V]{name: name, entries: entries, metrics: m}, nil
}

// Get returns the cached value of key.
func (c *LookupCache[V]) Get(key string) (V, bool) {
	return c.entries.Get(normalizeKey(key))
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *LookupCache[V]) Put(key string, value V) {
	c.entries.Add(normalizeKey(key), value)
}

// Len returns the number of cached entries.
func (c *LookupCache[V]) Len() int {
	return c.entries.Len()
}

// GetOrLoad returns the cached value of key or loads it. Concurrent misses on the same key
// share a single load call. The load is detached from the cancellation of the caller that
// started it and bounded by LoadTimeout, so one abandoned request does not fail the others.
// Each caller still stops waiting when its own ctx is done.
func (c *LookupCache[V]) GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, error) {
	var zero V
	normalized := normalizeKey(key)

	if value, ok := c.entries.Get(normalized); ok {
		c.metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return value, nil
	}
	c.metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()

	results := c.group.DoChan(normalized, func() (any, error) {
		// Another load may have finished between the miss and this call.
		if value, ok := c.entries.Get(normalized); ok {
			return value, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		value, cacheable, errLoad := load(loadCtx)
		if errLoad != nil {
			return nil, errLoad
		}
		if cacheable {
			c.entries.Add(normalized, value)
		}

		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(V)

		return value, nil
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
