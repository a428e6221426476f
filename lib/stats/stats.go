package stats

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// Collector holds the metrics of a single client session
type Collector struct {
	set      *metrics.Set
	registry gometrics.Registry
}

// NewCollector creates a new, empty collector
func NewCollector() *Collector {
	return &Collector{
		set:      metrics.NewSet(),
		registry: gometrics.NewRegistry(),
	}
}

// --------------------------------------------------------------------------
// Counters
// --------------------------------------------------------------------------

// CacheHit records a lookup that was served from a completed cache entry
func (c *Collector) CacheHit(cache string) {
	c.inc(fmt.Sprintf(`ddoc_cache_hits_total{cache=%q}`, cache))
}

// CacheMiss records a lookup that had to start a new computation
func (c *Collector) CacheMiss(cache string) {
	c.inc(fmt.Sprintf(`ddoc_cache_misses_total{cache=%q}`, cache))
}

// CacheRefresh records a forced replacement of a completed cache entry
func (c *Collector) CacheRefresh(cache string) {
	c.inc(fmt.Sprintf(`ddoc_cache_refreshes_total{cache=%q}`, cache))
}

// Retry records a retry decision of the given policy
func (c *Collector) Retry(policy string) {
	c.inc(fmt.Sprintf(`ddoc_retries_total{policy=%q}`, policy))
}

// Dispatch records that a logical operation entered the given state
func (c *Collector) Dispatch(state string) {
	c.inc(fmt.Sprintf(`ddoc_dispatch_total{state=%q}`, state))
}

// ObserveDispatch records the latency and request charge of a finished operation
func (c *Collector) ObserveDispatch(start time.Time, charge float64) {
	if c == nil {
		return
	}
	c.set.GetOrCreateHistogram(`ddoc_dispatch_duration_seconds`).UpdateDuration(start)
	c.set.GetOrCreateFloatCounter(`ddoc_request_charge_total`).Add(charge)

	gometrics.GetOrRegisterTimer("dispatch.latency", c.registry).UpdateSince(start)
	gometrics.GetOrRegisterHistogram("dispatch.charge", c.registry, gometrics.NewExpDecaySample(1028, 0.015)).
		Update(int64(charge * 100))
}

// Counter returns the current value of a counter, 0 if it was never touched
func (c *Collector) Counter(name string) uint64 {
	if c == nil {
		return 0
	}
	return c.set.GetOrCreateCounter(name).Get()
}

func (c *Collector) inc(name string) {
	if c == nil {
		return
	}
	c.set.GetOrCreateCounter(name).Inc()
}

// --------------------------------------------------------------------------
// Export
// --------------------------------------------------------------------------

// WritePrometheus writes all counters in the Prometheus text format
func (c *Collector) WritePrometheus(w io.Writer) {
	if c == nil {
		return
	}
	c.set.WritePrometheus(w)
}

// TimerSnapshot is a point in time view of a timer
type TimerSnapshot struct {
	Name  string
	Count int64
	Mean  time.Duration
	P99   time.Duration
}

// Timers returns a snapshot of all registered timers sorted by name
func (c *Collector) Timers() []TimerSnapshot {
	if c == nil {
		return nil
	}
	var out []TimerSnapshot
	c.registry.Each(func(name string, m interface{}) {
		t, ok := m.(gometrics.Timer)
		if !ok {
			return
		}
		s := t.Snapshot()
		out = append(out, TimerSnapshot{
			Name:  name,
			Count: s.Count(),
			Mean:  time.Duration(s.Mean()),
			P99:   time.Duration(s.Percentile(0.99)),
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
