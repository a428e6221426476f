package replica

import (
	"context"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/retry"
	"github.com/ValentinKolb/dDoc/lib/stats"
)

// Options configure a ReplicatedClient
type Options struct {
	DefaultConsistency resource.ConsistencyLevel
	Quorum             QuorumOptions
	Retry              retry.Options
}

// ReplicatedClient dispatches requests to the replica sets of partitions
type ReplicatedClient struct {
	reader    *ConsistencyReader
	writer    *ConsistencyWriter
	sessions  ISessionContainer
	opts      Options
	collector *stats.Collector
}

// NewReplicatedClient creates a client. sessions may be nil.
func NewReplicatedClient(store IStoreClient, selector IAddressSelector, sessions ISessionContainer, opts Options, collector *stats.Collector) *ReplicatedClient {
	c := &ReplicatedClient{sessions: sessions, opts: opts, collector: collector}

	reader := NewStoreReader(store, selector, sessions)
	reader.onState = c.enter
	c.reader = NewConsistencyReader(reader, NewQuorumReader(reader, opts.Quorum), opts.DefaultConsistency)

	c.writer = NewConsistencyWriter(store, selector)
	c.writer.onState = c.enter
	return c
}

// Invoke dispatches req. Gone errors mark the stale caches for refresh and
// the whole resolution is retried; if the topology does not settle within
// the retry window, 503 is returned.
func (c *ReplicatedClient) Invoke(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error) {
	policy := retry.NewGoneAndRetryPolicy(req, c.opts.Retry)
	return retry.Execute(ctx, policy, req, c.collector, func(ctx context.Context) (*resource.StoreResponse, error) {
		return c.Dispatch(ctx, req)
	})
}

// Dispatch makes a single attempt. Callers that re-target the request
// between attempts (e.g. range feeds after a split) run their own gone policy
// around it.
func (c *ReplicatedClient) Dispatch(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error) {
	start := time.Now()
	c.enter(StateRouting)

	var resp *resource.StoreResponse
	var err error
	if req.Operation.IsWrite() {
		resp, err = c.writer.Write(ctx, req)
	} else {
		resp, err = c.reader.Read(ctx, req)
	}

	state := Outcome(err)
	c.enter(state)
	if err != nil {
		Logger.Debugf("%s %s (activity %s) ended %s: %v", req.Operation, req.ResourceAddress, req.ActivityID, state, err)
		return nil, err
	}

	if c.sessions != nil {
		c.sessions.SetSessionToken(req, resp.Headers)
	}
	c.collector.ObserveDispatch(start, resp.RequestCharge())
	return resp, nil
}

func (c *ReplicatedClient) enter(s State) {
	c.collector.Dispatch(s.String())
}

// Outcome returns the final state of a dispatch that ended with err
func Outcome(err error) State {
	if err == nil {
		return StateSucceeded
	}
	switch dberr.KindOf(err) {
	case dberr.KindTopology, dberr.KindTransient, dberr.KindConsistency:
		return StateRetryable
	default:
		return StateTerminal
	}
}
