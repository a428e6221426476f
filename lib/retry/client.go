package retry

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/resource"
)

// ClientPolicy consults the endpoint discovery, session read and throttle
// policies, in this order. The first policy that retries decides.
type ClientPolicy struct {
	policies []IRetryPolicy
	last     string
}

// NewClientPolicy creates the policy chain of one operation
func NewClientPolicy(endpoints IEndpointManager, opts Options) *ClientPolicy {
	return &ClientPolicy{policies: []IRetryPolicy{
		NewEndpointDiscoveryPolicy(endpoints, opts),
		NewSessionReadPolicy(endpoints, opts),
		NewThrottlePolicy(opts),
	}}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see retry.IRetryPolicy)
// --------------------------------------------------------------------------

func (p *ClientPolicy) Name() string {
	if p.last != "" {
		return p.last
	}
	return "client"
}

func (p *ClientPolicy) OnBeforeSend(req *resource.Request) {
	req.ClearRoute()
	for _, policy := range p.policies {
		policy.OnBeforeSend(req)
	}
}

func (p *ClientPolicy) ShouldRetry(ctx context.Context, err error) Decision {
	for _, policy := range p.policies {
		if d := policy.ShouldRetry(ctx, err); d.Retry || d.Err != nil {
			p.last = policy.Name()
			return d
		}
	}
	return NoRetry
}
