package retry

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// IEndpointManager is the part of the endpoint manager the client policies use
type IEndpointManager interface {
	ResolveServiceEndpoint(req *resource.Request) string
	ReadEndpoints() []string
	WriteEndpoints() []string
	MarkUnavailableForRead(endpoint string)
	MarkUnavailableForWrite(endpoint string)
	Refresh(ctx context.Context) error
}

// EndpointDiscoveryPolicy handles 403/3 (write forbidden) and 403/1008
// (account not found in this region): the region is marked unavailable, the
// account is read again and the request is retried at a fixed interval. The
// manager orders marked regions last, so the retry goes to the next region.
type EndpointDiscoveryPolicy struct {
	opts      Options
	endpoints IEndpointManager
	attempt   int
	current   string
	write     bool
}

// NewEndpointDiscoveryPolicy creates the policy of one operation
func NewEndpointDiscoveryPolicy(endpoints IEndpointManager, opts Options) *EndpointDiscoveryPolicy {
	return &EndpointDiscoveryPolicy{opts: opts, endpoints: endpoints}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see retry.IRetryPolicy)
// --------------------------------------------------------------------------

func (p *EndpointDiscoveryPolicy) Name() string { return "endpoint_discovery" }

func (p *EndpointDiscoveryPolicy) OnBeforeSend(req *resource.Request) {
	p.write = !req.IsReadOnly()
	p.current = p.endpoints.ResolveServiceEndpoint(req)
}

func (p *EndpointDiscoveryPolicy) ShouldRetry(ctx context.Context, err error) Decision {
	if dberr.StatusCode(err) != dberr.StatusForbidden {
		return NoRetry
	}
	sub := dberr.SubStatusOf(err)
	if sub != dberr.SubStatusWriteForbidden && sub != dberr.SubStatusDatabaseAccountNotFound {
		return NoRetry
	}
	if !p.opts.EnableEndpointDiscovery || p.attempt >= p.opts.EndpointDiscoveryMaxRetries {
		return NoRetry
	}
	p.attempt++

	if p.write {
		p.endpoints.MarkUnavailableForWrite(p.current)
	} else {
		p.endpoints.MarkUnavailableForRead(p.current)
	}
	if rerr := p.endpoints.Refresh(ctx); rerr != nil {
		Logger.Warningf("endpoint refresh after %v failed, retrying with the known endpoints: %v", err, rerr)
	}
	return RetryAfter(p.opts.EndpointDiscoveryInterval)
}
