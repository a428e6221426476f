package retry

import (
	"context"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// ThrottlePolicy retries 429 responses after the server supplied delay (or a
// default one), for a bounded number of attempts and cumulative wait
type ThrottlePolicy struct {
	opts    Options
	attempt int
	waited  time.Duration
}

// NewThrottlePolicy creates the policy of one operation
func NewThrottlePolicy(opts Options) *ThrottlePolicy {
	return &ThrottlePolicy{opts: opts}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see retry.IRetryPolicy)
// --------------------------------------------------------------------------

func (p *ThrottlePolicy) Name() string { return "throttle" }

func (p *ThrottlePolicy) OnBeforeSend(*resource.Request) {}

func (p *ThrottlePolicy) ShouldRetry(_ context.Context, err error) Decision {
	if !dberr.IsThrottled(err) || p.attempt >= p.opts.ThrottleMaxRetries {
		return NoRetry
	}

	wait := dberr.RetryAfter(err)
	if wait <= 0 {
		wait = p.opts.ThrottleDefaultBackoff
	}
	if p.waited+wait > p.opts.ThrottleMaxWait {
		return NoRetry
	}

	p.attempt++
	p.waited += wait
	return RetryAfter(wait)
}
