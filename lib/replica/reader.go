package replica

import (
	"context"
	"math/rand"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// StoreReader reads from the replicas of the partition serving a request
type StoreReader struct {
	store    IStoreClient
	selector IAddressSelector
	sessions ISessionContainer
	onState  stateFunc
}

// NewStoreReader creates a reader. sessions may be nil if no read uses
// session consistency.
func NewStoreReader(store IStoreClient, selector IAddressSelector, sessions ISessionContainer) *StoreReader {
	return &StoreReader{store: store, selector: selector, sessions: sessions}
}

// ReadMultiple reads from randomly chosen replicas until count valid results
// were collected or every replica was asked. Replicas are asked in rounds,
// each round fans out to as many replicas as results are still missing.
//
// The returned slice may hold fewer than count results. An error is returned
// only if no replica returned a valid result.
func (r *StoreReader) ReadMultiple(ctx context.Context, req *resource.Request, count int, includePrimary, useSession bool) ([]*StoreReadResult, error) {
	uris, err := r.resolve(ctx, req, includePrimary)
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return nil, nil
	}
	rand.Shuffle(len(uris), func(i, j int) { uris[i], uris[j] = uris[j], uris[i] })

	dispatched, err := r.prepare(req, useSession)
	if err != nil {
		return nil, err
	}
	tracker := req.ChargeTracker()

	var valid []*StoreReadResult
	var errs error
	next := 0
	for len(valid) < count && next < len(uris) {
		batch := uris[next:min(next+count-len(valid), len(uris))]
		next += len(batch)

		r.onState.enter(StateDispatched)
		p := pool.NewWithResults[*StoreReadResult]()
		for _, uri := range batch {
			uri := uri
			p.Go(func() *StoreReadResult {
				return r.invoke(ctx, uri, dispatched, tracker)
			})
		}
		for _, res := range p.Wait() {
			if res.IsValid {
				valid = append(valid, res)
				continue
			}
			errs = multierr.Append(errs, res.Err)
		}
	}

	if len(valid) == 0 && errs != nil {
		Logger.Debugf("no valid result for %s %s from %d replicas: %v", req.Operation, req.ResourceAddress, next, errs)
		return nil, mostRelevant(errs)
	}
	return valid, nil
}

// ReadPrimary reads from the primary replica
func (r *StoreReader) ReadPrimary(ctx context.Context, req *resource.Request, useSession bool) (*StoreReadResult, error) {
	uri, err := r.selector.ResolvePrimaryURI(ctx, req, req.Context.ForceRefreshAddressCache)
	if err != nil {
		return nil, err
	}
	req.Context.ForceRefreshAddressCache = false
	r.onState.enter(StateAddressResolved)

	dispatched, err := r.prepare(req, useSession)
	if err != nil {
		return nil, err
	}

	r.onState.enter(StateDispatched)
	res := r.invoke(ctx, uri, dispatched, req.ChargeTracker())
	if !res.IsValid {
		return nil, res.Err
	}
	return res, nil
}

// resolve returns the replica URIs of req. An empty replica set is refreshed
// once before it is reported as Gone.
func (r *StoreReader) resolve(ctx context.Context, req *resource.Request, includePrimary bool) ([]string, error) {
	force := req.Context.ForceRefreshAddressCache
	all, err := r.selector.ResolveAllURIs(ctx, req, true, force)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 && !force {
		Logger.Infof("no replica address for %s, refreshing", req.ResourceAddress)
		if all, err = r.selector.ResolveAllURIs(ctx, req, true, true); err != nil {
			return nil, err
		}
	}
	req.Context.ForceRefreshAddressCache = false
	if len(all) == 0 {
		return nil, dberr.Gone("the requested resource is no longer available at the server: no replica address for " + req.ResourceAddress)
	}
	r.onState.enter(StateAddressResolved)

	if includePrimary {
		return all, nil
	}
	return r.selector.ResolveAllURIs(ctx, req, false, false)
}

// prepare returns the request sent to the replicas. Session reads carry the
// partition local token of the resolved range instead of the token the
// caller passed.
func (r *StoreReader) prepare(req *resource.Request, useSession bool) (*resource.Request, error) {
	if !useSession || r.sessions == nil || req.Context.ResolvedRange == nil {
		return req, nil
	}

	token, ok, err := r.sessions.ResolvePartitionLocalToken(req, req.Context.ResolvedRange)
	if err != nil {
		return nil, dberr.WithKind(err, dberr.KindClient)
	}
	dispatched := req.Clone()
	if ok {
		dispatched.Headers.Set(resource.HeaderSessionToken, token.String())
		req.Context.SessionToken = token.String()
	} else {
		dispatched.Headers.Del(resource.HeaderSessionToken)
		req.Context.SessionToken = ""
	}
	return dispatched, nil
}

func (r *StoreReader) invoke(ctx context.Context, uri string, req *resource.Request, tracker *resource.ChargeTracker) *StoreReadResult {
	resp, err := r.store.Invoke(ctx, uri, req)
	res := newReadResult(uri, resp, err)
	tracker.Add(res.RequestCharge)
	return res
}

// mostRelevant picks the error reported for a failed read: a session miss
// is retried by the session policy, a Gone by the gone policy. Other
// failures are reported as they are.
func mostRelevant(errs error) error {
	all := multierr.Errors(errs)
	for _, err := range all {
		if dberr.Has(err, dberr.StatusNotFound, dberr.SubStatusReadSessionNotAvailable) {
			return err
		}
	}
	for _, err := range all {
		if dberr.StatusCode(err) == dberr.StatusGone {
			return err
		}
	}
	return all[0]
}
