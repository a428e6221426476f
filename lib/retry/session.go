package retry

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// SessionReadPolicy handles 404/1002: the replica has not reached the session
// token of the read. If the read was not served by the write region, it is
// sent there, at most SessionMaxRetries times.
type SessionReadPolicy struct {
	opts      Options
	endpoints IEndpointManager
	attempt   int
	current   string
	redirect  string
	read      bool
}

// NewSessionReadPolicy creates the policy of one operation
func NewSessionReadPolicy(endpoints IEndpointManager, opts Options) *SessionReadPolicy {
	return &SessionReadPolicy{opts: opts, endpoints: endpoints}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see retry.IRetryPolicy)
// --------------------------------------------------------------------------

func (p *SessionReadPolicy) Name() string { return "session_read" }

func (p *SessionReadPolicy) OnBeforeSend(req *resource.Request) {
	p.read = req.IsReadOnly()
	if p.redirect != "" {
		req.RouteToLocation(p.redirect)
	}
	p.current = p.endpoints.ResolveServiceEndpoint(req)
}

func (p *SessionReadPolicy) ShouldRetry(_ context.Context, err error) Decision {
	if !dberr.Has(err, dberr.StatusNotFound, dberr.SubStatusReadSessionNotAvailable) || !p.read {
		return NoRetry
	}
	if p.attempt >= p.opts.SessionMaxRetries {
		return NoRetry
	}

	writes := p.endpoints.WriteEndpoints()
	if len(writes) == 0 || writes[0] == p.current {
		return NoRetry
	}
	p.attempt++
	p.redirect = writes[0]
	return RetryAfter(0)
}
