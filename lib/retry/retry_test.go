package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	opts := DefaultOptions()
	opts.GoneWindow = time.Second
	opts.GoneInitialBackoff = time.Millisecond
	opts.GoneMaxBackoff = 4 * time.Millisecond
	opts.EndpointDiscoveryInterval = time.Millisecond
	opts.EndpointDiscoveryMaxRetries = 3
	opts.ThrottleDefaultBackoff = time.Millisecond
	opts.ThrottleMaxWait = 50 * time.Millisecond
	return opts
}

func readRequest() *resource.Request {
	return resource.NewRequest(resource.OpRead, resource.TypeDocument, "dbs/db/colls/c/docs/d", nil, nil)
}

func writeRequest() *resource.Request {
	return resource.NewRequest(resource.OpCreate, resource.TypeDocument, "dbs/db/colls/c", []byte(`{}`), nil)
}

// fakeEndpoints is a two region account: writes go to west, reads prefer east
type fakeEndpoints struct {
	reads, writes []string
	marked        []string
	refreshes     int
}

func newFakeEndpoints() *fakeEndpoints {
	return &fakeEndpoints{reads: []string{"east", "west"}, writes: []string{"west"}}
}

func (f *fakeEndpoints) ResolveServiceEndpoint(req *resource.Request) string {
	if req.Context.LocationEndpointToRoute != "" {
		return req.Context.LocationEndpointToRoute
	}
	if req.IsReadOnly() {
		return f.reads[0]
	}
	return f.writes[0]
}
func (f *fakeEndpoints) ReadEndpoints() []string  { return f.reads }
func (f *fakeEndpoints) WriteEndpoints() []string { return f.writes }
func (f *fakeEndpoints) MarkUnavailableForRead(ep string) {
	f.marked = append(f.marked, "read:"+ep)
	f.reads = append(without(f.reads, ep), ep)
}
func (f *fakeEndpoints) MarkUnavailableForWrite(ep string) {
	f.marked = append(f.marked, "write:"+ep)
	f.writes = append(without(f.writes, ep), ep)
}
func (f *fakeEndpoints) Refresh(context.Context) error {
	f.refreshes++
	return nil
}

func without(list []string, v string) []string {
	var out []string
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Execute
// --------------------------------------------------------------------------

func TestExecuteReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, err := Execute(context.Background(), NewThrottlePolicy(fastOptions()), readRequest(), nil, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestExecuteNeverRetriesClientErrors(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), NewThrottlePolicy(fastOptions()), readRequest(), nil, func(context.Context) (int, error) {
		calls++
		return 0, dberr.Client(dberr.ErrInvalidArgument, "bad")
	})
	assert.True(t, dberr.Is(err, dberr.ErrInvalidArgument))
	assert.Equal(t, 1, calls)
}

func TestExecuteCountsRetries(t *testing.T) {
	collector := stats.NewCollector()
	calls := 0
	got, err := Execute(context.Background(), NewThrottlePolicy(fastOptions()), readRequest(), collector, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, dberr.New(dberr.StatusTooManyRequests, 0, "slow down")
		}
		return calls, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.EqualValues(t, 2, collector.Counter(`ddoc_retries_total{policy="throttle"}`))
}

func TestExecuteStopsWhenContextIsDone(t *testing.T) {
	opts := fastOptions()
	opts.ThrottleDefaultBackoff = time.Second
	opts.ThrottleMaxWait = time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Execute(ctx, NewThrottlePolicy(opts), readRequest(), nil, func(context.Context) (int, error) {
		return 0, dberr.New(dberr.StatusTooManyRequests, 0, "slow down")
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// --------------------------------------------------------------------------
// Gone
// --------------------------------------------------------------------------

func TestGoneSetsRefreshFlags(t *testing.T) {
	ctx := context.Background()

	req := readRequest()
	p := NewGoneAndRetryPolicy(req, fastOptions())
	d := p.ShouldRetry(ctx, dberr.Gone("replica moved"))
	assert.True(t, d.Retry)
	assert.Zero(t, d.After, "first retry is immediate")
	assert.True(t, req.Context.ForceRefreshAddressCache)
	assert.False(t, req.ForceNameCacheRefresh)
	assert.False(t, req.ForcePartitionKeyRangeRefresh)

	req = readRequest()
	p = NewGoneAndRetryPolicy(req, fastOptions())
	assert.True(t, p.ShouldRetry(ctx, dberr.New(dberr.StatusGone, dberr.SubStatusNameCacheIsStale, "stale")).Retry)
	assert.True(t, req.ForceNameCacheRefresh)

	for _, sub := range []dberr.SubStatus{dberr.SubStatusPartitionKeyRangeGone, dberr.SubStatusCompletingSplit, dberr.SubStatusCompletingPartitionMigration} {
		req = readRequest()
		p = NewGoneAndRetryPolicy(req, fastOptions())
		assert.True(t, p.ShouldRetry(ctx, dberr.New(dberr.StatusGone, sub, "split")).Retry)
		assert.True(t, req.ForcePartitionKeyRangeRefresh, "sub status %d", sub)
	}
}

func TestGoneBacksOffExponentially(t *testing.T) {
	p := NewGoneAndRetryPolicy(readRequest(), fastOptions())
	var waits []time.Duration
	for i := 0; i < 5; i++ {
		d := p.ShouldRetry(context.Background(), dberr.Gone("gone"))
		require.True(t, d.Retry)
		waits = append(waits, d.After)
	}
	assert.Equal(t, []time.Duration{0, time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond}, waits)
}

func TestGoneWindowExhaustedReturnsServiceUnavailable(t *testing.T) {
	p := NewGoneAndRetryPolicy(readRequest(), fastOptions())
	start := p.start
	p.now = func() time.Time { return start.Add(2 * time.Second) }

	cause := dberr.Gone("gone")
	d := p.ShouldRetry(context.Background(), cause)
	assert.False(t, d.Retry)
	require.Error(t, d.Err)
	assert.Equal(t, dberr.StatusServiceUnavailable, dberr.StatusCode(d.Err))
	assert.Equal(t, cause, dberr.Cause(d.Err))
}

func TestGoneWaitIsCappedByRemainingWindow(t *testing.T) {
	opts := fastOptions()
	opts.GoneInitialBackoff = 500 * time.Millisecond
	p := NewGoneAndRetryPolicy(readRequest(), opts)
	start := p.start
	p.now = func() time.Time { return start }
	p.ShouldRetry(context.Background(), dberr.Gone("gone"))

	p.now = func() time.Time { return start.Add(900 * time.Millisecond) }
	d := p.ShouldRetry(context.Background(), dberr.Gone("gone"))
	assert.True(t, d.Retry)
	assert.Equal(t, 100*time.Millisecond, d.After)
}

func TestGoneIgnoresOtherErrors(t *testing.T) {
	p := NewGoneAndRetryPolicy(readRequest(), fastOptions())
	assert.Equal(t, NoRetry, p.ShouldRetry(context.Background(), dberr.NotFound("missing")))
}

// --------------------------------------------------------------------------
// Client policies
// --------------------------------------------------------------------------

func TestEndpointDiscoveryMarksAndRefreshes(t *testing.T) {
	eps := newFakeEndpoints()
	p := NewEndpointDiscoveryPolicy(eps, fastOptions())
	req := writeRequest()

	p.OnBeforeSend(req)
	d := p.ShouldRetry(context.Background(), dberr.New(dberr.StatusForbidden, dberr.SubStatusWriteForbidden, "read only region"))
	assert.True(t, d.Retry)
	assert.Equal(t, []string{"write:west"}, eps.marked)
	assert.Equal(t, 1, eps.refreshes)

	req = readRequest()
	p.OnBeforeSend(req)
	p.ShouldRetry(context.Background(), dberr.New(dberr.StatusForbidden, dberr.SubStatusDatabaseAccountNotFound, "gone region"))
	assert.Equal(t, []string{"write:west", "read:east"}, eps.marked)

	// a plain 403 is not a topology problem
	assert.Equal(t, NoRetry, p.ShouldRetry(context.Background(), dberr.New(dberr.StatusForbidden, 0, "denied")))
}

func TestEndpointDiscoveryIsBounded(t *testing.T) {
	p := NewEndpointDiscoveryPolicy(newFakeEndpoints(), fastOptions())
	err := dberr.New(dberr.StatusForbidden, dberr.SubStatusWriteForbidden, "read only region")
	retries := 0
	for p.ShouldRetry(context.Background(), err).Retry {
		retries++
	}
	assert.Equal(t, 3, retries)

	opts := fastOptions()
	opts.EnableEndpointDiscovery = false
	p = NewEndpointDiscoveryPolicy(newFakeEndpoints(), opts)
	assert.False(t, p.ShouldRetry(context.Background(), err).Retry)
}

func TestSessionReadRoutesToWriteRegionOnce(t *testing.T) {
	eps := newFakeEndpoints()
	p := NewSessionReadPolicy(eps, fastOptions())
	req := readRequest()
	err := dberr.New(dberr.StatusNotFound, dberr.SubStatusReadSessionNotAvailable, "session not available")

	p.OnBeforeSend(req)
	require.True(t, p.ShouldRetry(context.Background(), err).Retry)

	req.ClearRoute()
	p.OnBeforeSend(req)
	assert.Equal(t, "west", req.Context.LocationEndpointToRoute)
	assert.False(t, p.ShouldRetry(context.Background(), err).Retry)
}

func TestSessionReadSkipsWhenAlreadyOnWriteRegion(t *testing.T) {
	eps := newFakeEndpoints()
	eps.reads = []string{"west"}
	p := NewSessionReadPolicy(eps, fastOptions())
	p.OnBeforeSend(readRequest())
	assert.False(t, p.ShouldRetry(context.Background(), dberr.New(dberr.StatusNotFound, dberr.SubStatusReadSessionNotAvailable, "x")).Retry)

	// writes are never retried for a session miss
	p = NewSessionReadPolicy(newFakeEndpoints(), fastOptions())
	p.OnBeforeSend(writeRequest())
	assert.False(t, p.ShouldRetry(context.Background(), dberr.New(dberr.StatusNotFound, dberr.SubStatusReadSessionNotAvailable, "x")).Retry)
}

func TestThrottleHonorsServerDelayAndBudget(t *testing.T) {
	p := NewThrottlePolicy(fastOptions())
	err := dberr.FromResponse(dberr.StatusTooManyRequests, map[string]string{dberr.HeaderRetryAfterMs: "20"}, "slow down")

	d := p.ShouldRetry(context.Background(), err)
	assert.True(t, d.Retry)
	assert.Equal(t, 20*time.Millisecond, d.After)
	assert.True(t, p.ShouldRetry(context.Background(), err).Retry)
	// 60ms would exceed the cumulative budget of 50ms
	assert.False(t, p.ShouldRetry(context.Background(), err).Retry)
}

func TestThrottleMaxRetries(t *testing.T) {
	opts := fastOptions()
	opts.ThrottleMaxWait = time.Hour
	p := NewThrottlePolicy(opts)
	retries := 0
	for p.ShouldRetry(context.Background(), dberr.New(dberr.StatusTooManyRequests, 0, "x")).Retry {
		retries++
	}
	assert.Equal(t, opts.ThrottleMaxRetries, retries)
}

func TestClientPolicyChain(t *testing.T) {
	eps := newFakeEndpoints()
	p := NewClientPolicy(eps, fastOptions())
	req := readRequest()

	p.OnBeforeSend(req)
	d := p.ShouldRetry(context.Background(), dberr.New(dberr.StatusNotFound, dberr.SubStatusReadSessionNotAvailable, "x"))
	assert.True(t, d.Retry)
	assert.Equal(t, "session_read", p.Name())

	p.OnBeforeSend(req)
	assert.Equal(t, "west", req.Context.LocationEndpointToRoute)

	d = p.ShouldRetry(context.Background(), dberr.New(dberr.StatusTooManyRequests, 0, "x"))
	assert.True(t, d.Retry)
	assert.Equal(t, "throttle", p.Name())

	assert.Equal(t, NoRetry, p.ShouldRetry(context.Background(), dberr.NotFound("missing")))
}
