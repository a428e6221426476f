package retry

import (
	"context"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// GoneAndRetryPolicy retries topology errors of the replicated dispatch for a
// bounded time window. Each error sets the refresh flag of the cache that
// caused it:
//
//	410            → address cache
//	410/1000       → collection name cache
//	410/1002, 1007 → routing map (partition split)
//	410/1008       → routing map (partition migration)
//
// The first retry is immediate, later ones back off exponentially. When the
// window is exhausted, 503 is returned with the last error as cause.
type GoneAndRetryPolicy struct {
	opts    Options
	req     *resource.Request
	start   time.Time
	attempt int
	backoff time.Duration
	now     func() time.Time
}

// NewGoneAndRetryPolicy creates the policy for req
func NewGoneAndRetryPolicy(req *resource.Request, opts Options) *GoneAndRetryPolicy {
	return &GoneAndRetryPolicy{
		opts:    opts,
		req:     req,
		start:   time.Now(),
		backoff: opts.GoneInitialBackoff,
		now:     time.Now,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see retry.IRetryPolicy)
// --------------------------------------------------------------------------

func (p *GoneAndRetryPolicy) Name() string { return "gone" }

func (p *GoneAndRetryPolicy) OnBeforeSend(*resource.Request) {}

func (p *GoneAndRetryPolicy) ShouldRetry(_ context.Context, err error) Decision {
	if dberr.StatusCode(err) != dberr.StatusGone {
		return NoRetry
	}

	elapsed := p.now().Sub(p.start)
	if elapsed >= p.opts.GoneWindow {
		Logger.Warningf("gone retries of %s exhausted after %v: %v", p.req.ResourceAddress, elapsed, err)
		return Decision{Err: dberr.ServiceUnavailable("service unavailable: topology did not settle within the retry window", err)}
	}

	switch dberr.SubStatusOf(err) {
	case dberr.SubStatusNameCacheIsStale:
		p.req.ForceNameCacheRefresh = true
	case dberr.SubStatusPartitionKeyRangeGone, dberr.SubStatusCompletingSplit, dberr.SubStatusCompletingPartitionMigration:
		p.req.ForcePartitionKeyRangeRefresh = true
	}
	p.req.Context.ForceRefreshAddressCache = true

	p.attempt++
	if p.attempt == 1 {
		return RetryAfter(0)
	}

	wait := p.backoff
	if remaining := p.opts.GoneWindow - elapsed; wait > remaining {
		wait = remaining
	}
	p.backoff *= time.Duration(max(p.opts.GoneBackoffMultiplier, 1))
	if p.backoff > p.opts.GoneMaxBackoff {
		p.backoff = p.opts.GoneMaxBackoff
	}
	return RetryAfter(wait)
}
