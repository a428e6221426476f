package replica

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// ConsistencyReader serves reads with the consistency level of the request
type ConsistencyReader struct {
	reader       *StoreReader
	quorum       *QuorumReader
	defaultLevel resource.ConsistencyLevel
}

// NewConsistencyReader creates a reader. Requests without a consistency
// level header are read with defaultLevel.
func NewConsistencyReader(reader *StoreReader, quorum *QuorumReader, defaultLevel resource.ConsistencyLevel) *ConsistencyReader {
	return &ConsistencyReader{reader: reader, quorum: quorum, defaultLevel: defaultLevel}
}

// Read reads req from the replicas
func (c *ConsistencyReader) Read(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error) {
	level, err := c.LevelOf(req)
	if err != nil {
		return nil, err
	}

	if level.RequiresQuorum() {
		return c.quorum.Read(ctx, req)
	}

	results, err := c.reader.ReadMultiple(ctx, req, 1, true, level == resource.ConsistencySession)
	if err != nil {
		return nil, dberr.WithRequestCharge(err, req.ChargeTracker().Total())
	}
	if len(results) == 0 {
		return nil, dberr.Gone("the requested resource is no longer available at the server: no replica answered")
	}
	return results[0].ToResponse(req.ChargeTracker())
}

// LevelOf returns the consistency level req is read with
func (c *ConsistencyReader) LevelOf(req *resource.Request) (resource.ConsistencyLevel, error) {
	if v := req.Headers.Get(resource.HeaderConsistencyLevel); v != "" {
		return resource.ParseConsistencyLevel(v)
	}
	return c.defaultLevel, nil
}

// ConsistencyWriter sends writes to the primary replica
type ConsistencyWriter struct {
	store    IStoreClient
	selector IAddressSelector
	onState  stateFunc
}

// NewConsistencyWriter creates a writer
func NewConsistencyWriter(store IStoreClient, selector IAddressSelector) *ConsistencyWriter {
	return &ConsistencyWriter{store: store, selector: selector}
}

// Write makes a single attempt at the primary. Retries are left to the
// policies around the dispatch.
func (w *ConsistencyWriter) Write(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error) {
	uri, err := w.selector.ResolvePrimaryURI(ctx, req, req.Context.ForceRefreshAddressCache)
	if err != nil {
		return nil, err
	}
	req.Context.ForceRefreshAddressCache = false
	w.onState.enter(StateAddressResolved)

	w.onState.enter(StateDispatched)
	tracker := req.ChargeTracker()
	resp, err := w.store.Invoke(ctx, uri, req)
	if err != nil {
		tracker.Add(dberr.RequestCharge(err))
		return nil, dberr.WithRequestCharge(err, tracker.Total())
	}
	tracker.Add(resp.RequestCharge())
	resp.SetRequestCharge(tracker.Total())
	return resp, nil
}
