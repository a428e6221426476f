// Package replica implements the consistency aware dispatch of requests to
// the replicas of a partition.
//
// Writes go to the primary replica. Reads are served according to the
// consistency level of the request:
//
//	Eventual, ConsistentPrefix  any one replica
//	Session                     any replica that reached the session token
//	BoundedStaleness, Strong    a read quorum of secondaries, falling back to
//	                            the primary, with read barriers if the quorum
//	                            disagrees about the LSN
//
// Every logical operation passes through the states of State. Topology
// errors (410) are retried by the ReplicatedClient with a
// retry.GoneAndRetryPolicy after the affected caches were marked for refresh.
package replica

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/ValentinKolb/dDoc/lib/session"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("replica")

// IStoreClient invokes a request at one physical replica
type IStoreClient interface {
	Invoke(ctx context.Context, uri string, req *resource.Request) (*resource.StoreResponse, error)
}

// IAddressSelector resolves the replicas of the partition serving a request
type IAddressSelector interface {
	ResolveAllURIs(ctx context.Context, req *resource.Request, includePrimary, forceRefresh bool) ([]string, error)
	ResolvePrimaryURI(ctx context.Context, req *resource.Request, forceRefresh bool) (string, error)
}

// ISessionContainer keeps the session tokens of the client
type ISessionContainer interface {
	ResolvePartitionLocalToken(req *resource.Request, r *routing.PartitionKeyRange) (session.Token, bool, error)
	SetSessionToken(req *resource.Request, responseHeaders resource.Headers)
}

// --------------------------------------------------------------------------
// Dispatch states
// --------------------------------------------------------------------------

// State is the dispatch state of a logical operation
type State int

const (
	StateRouting State = iota
	StateAddressResolved
	StateDispatched
	StateSucceeded
	StateRetryable
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateRouting:
		return "routing"
	case StateAddressResolved:
		return "address_resolved"
	case StateDispatched:
		return "dispatched"
	case StateSucceeded:
		return "succeeded"
	case StateRetryable:
		return "retryable"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// IsFinal reports whether no further transition follows
func (s State) IsFinal() bool {
	return s == StateSucceeded || s == StateRetryable || s == StateTerminal
}

// stateFunc observes state transitions, it may be nil
type stateFunc func(State)

func (f stateFunc) enter(s State) {
	if f != nil {
		f(s)
	}
}
