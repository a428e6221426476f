package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	c.CacheHit("routing")
	c.CacheHit("routing")
	c.CacheMiss("routing")
	c.Retry("gone")

	assert.Equal(t, uint64(2), c.Counter(`ddoc_cache_hits_total{cache="routing"}`))
	assert.Equal(t, uint64(1), c.Counter(`ddoc_cache_misses_total{cache="routing"}`))
	assert.Equal(t, uint64(1), c.Counter(`ddoc_retries_total{policy="gone"}`))

	var buf bytes.Buffer
	c.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `ddoc_cache_hits_total{cache="routing"} 2`)
}

func TestCollectorTimers(t *testing.T) {
	c := NewCollector()
	c.ObserveDispatch(time.Now().Add(-5*time.Millisecond), 2.5)

	timers := c.Timers()
	require.Len(t, timers, 1)
	assert.Equal(t, "dispatch.latency", timers[0].Name)
	assert.Equal(t, int64(1), timers[0].Count)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.CacheHit("x")
	c.ObserveDispatch(time.Now(), 1)
	assert.Zero(t, c.Counter("anything"))
	assert.Nil(t, c.Timers())
}
