// Package retry implements the retry policies of the client and the generic
// executor running an operation under a policy.
//
// A policy is created per logical operation. Before every attempt the
// executor calls OnBeforeSend, which lets the policy route the request (for
// example to another region). After a failed attempt ShouldRetry decides
// whether to retry and how long to wait; attempt counters live inside the
// policy and are updated by ShouldRetry. A policy that declines lets the
// error propagate unchanged unless the decision carries a replacement error.
//
// Client errors are never retried.
package retry

import (
	"context"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("retry")

// Decision is the outcome of IRetryPolicy.ShouldRetry
type Decision struct {
	Retry bool
	After time.Duration
	// Err replaces the original error when the policy gives up
	Err error
}

// NoRetry declines without replacing the error
var NoRetry = Decision{}

// RetryAfter retries after d
func RetryAfter(d time.Duration) Decision {
	return Decision{Retry: true, After: d}
}

// IRetryPolicy decides about retries of one logical operation
type IRetryPolicy interface {
	// Name identifies the policy in metrics and logs
	Name() string

	// OnBeforeSend is called before every attempt
	OnBeforeSend(req *resource.Request)

	// ShouldRetry is called after a failed attempt
	ShouldRetry(ctx context.Context, err error) Decision
}

// Options are the parameters of all policies
type Options struct {
	GoneWindow            time.Duration
	GoneInitialBackoff    time.Duration
	GoneMaxBackoff        time.Duration
	GoneBackoffMultiplier int

	EnableEndpointDiscovery     bool
	EndpointDiscoveryMaxRetries int
	EndpointDiscoveryInterval   time.Duration

	SessionMaxRetries int

	ThrottleMaxRetries     int
	ThrottleMaxWait        time.Duration
	ThrottleDefaultBackoff time.Duration
}

// DefaultOptions returns the default policy parameters
func DefaultOptions() Options {
	return Options{
		GoneWindow:                  30 * time.Second,
		GoneInitialBackoff:          time.Second,
		GoneMaxBackoff:              15 * time.Second,
		GoneBackoffMultiplier:       2,
		EnableEndpointDiscovery:     true,
		EndpointDiscoveryMaxRetries: 120,
		EndpointDiscoveryInterval:   time.Second,
		SessionMaxRetries:           1,
		ThrottleMaxRetries:          9,
		ThrottleMaxWait:             30 * time.Second,
		ThrottleDefaultBackoff:      5 * time.Second,
	}
}

// Execute runs fn until it succeeds or policy declines. Waiting between
// attempts ends early if ctx is done.
func Execute[T any](ctx context.Context, policy IRetryPolicy, req *resource.Request, collector *stats.Collector, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		policy.OnBeforeSend(req)

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if dberr.KindOf(err) == dberr.KindClient {
			return zero, err
		}

		decision := policy.ShouldRetry(ctx, err)
		if !decision.Retry {
			if decision.Err != nil {
				return zero, decision.Err
			}
			return zero, err
		}

		collector.Retry(policy.Name())
		Logger.Debugf("%s: attempt %d of %s %s failed (%v), retrying in %v",
			policy.Name(), attempt, req.Operation, req.ResourceAddress, err, decision.After)

		if err := sleep(ctx, decision.After); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
