package cache

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("cache")

// Factory computes the value of a cache entry. The context passed to the
// factory is detached from the cancellation of the caller that started it,
// because other callers may be waiting on the same computation.
type Factory[V any] func(ctx context.Context) (V, error)

// entry is one computation, running or completed
type entry[V any] struct {
	done  chan struct{}
	value V
	err   error
}

func newEntry[V any]() *entry[V] {
	return &entry[V]{done: make(chan struct{})}
}

func (e *entry[V]) completed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// AsyncCache is a single-flight cache, see the package documentation
type AsyncCache[K comparable, V comparable] struct {
	name    string
	entries *xsync.MapOf[K, *entry[V]]
	stats   *stats.Collector
}

// NewAsyncCache creates a new cache. The name is only used for logging and metrics.
func NewAsyncCache[K comparable, V comparable](name string, collector *stats.Collector) *AsyncCache[K, V] {
	return &AsyncCache[K, V]{
		name:    name,
		entries: xsync.NewMapOf[K, *entry[V]](),
		stats:   collector,
	}
}

// Get returns the value for key, computing it with factory if needed.
// See the package documentation for the meaning of obsolete.
func (c *AsyncCache[K, V]) Get(ctx context.Context, key K, obsolete V, factory Factory[V]) (V, error) {
	var zero V

	if current, ok := c.entries.Load(key); ok {
		if !current.completed() {
			return c.await(ctx, current)
		}
		if current.err == nil && (obsolete == zero || current.value != obsolete) {
			c.stats.CacheHit(c.name)
			return current.value, nil
		}

		// the completed value is stale (or failed and not yet removed): race in a new computation
		fresh := newEntry[V]()
		actual, _ := c.entries.Compute(key, func(old *entry[V], loaded bool) (*entry[V], bool) {
			if loaded && old != current {
				return old, false
			}
			return fresh, false
		})
		if actual == fresh {
			c.stats.CacheMiss(c.name)
			c.start(ctx, key, fresh, factory)
		}
		return c.await(ctx, actual)
	}

	fresh := newEntry[V]()
	actual, loaded := c.entries.LoadOrStore(key, fresh)
	if !loaded {
		c.stats.CacheMiss(c.name)
		c.start(ctx, key, fresh, factory)
	}
	return c.await(ctx, actual)
}

// Refresh replaces a completed entry with a new computation of factory and
// waits for it. If the entry is still running, the running computation is
// awaited instead. If there is no entry, nothing is started.
func (c *AsyncCache[K, V]) Refresh(ctx context.Context, key K, factory Factory[V]) (V, error) {
	var zero V

	current, ok := c.entries.Load(key)
	if !ok {
		return zero, nil
	}
	if !current.completed() {
		return c.await(ctx, current)
	}

	fresh := newEntry[V]()
	actual, _ := c.entries.Compute(key, func(old *entry[V], loaded bool) (*entry[V], bool) {
		if !loaded || old == current {
			return fresh, false
		}
		return old, false
	})
	if actual == fresh {
		c.stats.CacheRefresh(c.name)
		c.start(ctx, key, fresh, factory)
	}
	return c.await(ctx, actual)
}

// TryGet returns the value of a successfully completed entry without waiting
func (c *AsyncCache[K, V]) TryGet(key K) (V, bool) {
	var zero V
	e, ok := c.entries.Load(key)
	if !ok || !e.completed() || e.err != nil {
		return zero, false
	}
	return e.value, true
}

// Set stores a completed value, replacing any existing entry
func (c *AsyncCache[K, V]) Set(key K, value V) {
	e := newEntry[V]()
	e.value = value
	close(e.done)
	c.entries.Store(key, e)
}

// Remove deletes the entry for key. Callers waiting on a running computation
// still receive its result.
func (c *AsyncCache[K, V]) Remove(key K) {
	c.entries.Delete(key)
}

// Clear removes all entries
func (c *AsyncCache[K, V]) Clear() {
	c.entries.Clear()
}

// Size returns the number of entries, running or completed
func (c *AsyncCache[K, V]) Size() int {
	return c.entries.Size()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// start runs the factory for e in its own goroutine
func (c *AsyncCache[K, V]) start(ctx context.Context, key K, e *entry[V], factory Factory[V]) {
	go func() {
		value, err := factory(context.WithoutCancel(ctx))
		e.value, e.err = value, err
		if err != nil {
			Logger.Debugf("%s: computation for %v failed: %v", c.name, key, err)
			// no negative caching: drop the slot if it still holds this entry
			c.entries.Compute(key, func(old *entry[V], loaded bool) (*entry[V], bool) {
				return old, !loaded || old == e
			})
		}
		close(e.done)
	}()
}

// await blocks until e completes or ctx is done
func (c *AsyncCache[K, V]) await(ctx context.Context, e *entry[V]) (V, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
