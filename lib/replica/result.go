package replica

import (
	"strconv"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// StoreReadResult is the outcome of one replica read, either a response or
// an error. Error results are valid if they are an authoritative answer of
// the replica (e.g. 404 for a missing document) and carry an LSN.
type StoreReadResult struct {
	URI      string
	Response *resource.StoreResponse
	Err      error

	LSN                   int64
	ItemLSN               int64
	QuorumAckedLSN        int64
	RangeID               string
	RequestCharge         float64
	CurrentReplicaSetSize int
	CurrentWriteQuorum    int
	IsValid               bool
}

// newReadResult extracts the quorum bookkeeping of a replica answer
func newReadResult(uri string, resp *resource.StoreResponse, err error) *StoreReadResult {
	r := &StoreReadResult{URI: uri, Response: resp, Err: err, LSN: -1, ItemLSN: -1, QuorumAckedLSN: -1}

	var headers resource.Headers
	switch {
	case err == nil && resp != nil:
		headers = resp.Headers
		r.IsValid = true
	case err != nil:
		headers = dberr.Headers(err)
	}

	if v, ok := headers.Int64(resource.HeaderLSN); ok {
		r.LSN = v
	}
	if v, ok := headers.Int64(resource.HeaderItemLSN); ok {
		r.ItemLSN = v
	}
	if v, ok := headers.Int64(resource.HeaderQuorumAckedLSN); ok {
		r.QuorumAckedLSN = v
	}
	if v, err := strconv.Atoi(headers.Get(resource.HeaderCurrentReplicaSetSize)); err == nil {
		r.CurrentReplicaSetSize = v
	}
	if v, err := strconv.Atoi(headers.Get(resource.HeaderCurrentWriteQuorum)); err == nil {
		r.CurrentWriteQuorum = v
	}
	r.RangeID = headers.Get(resource.HeaderPartitionKeyRangeID)
	r.RequestCharge, _ = headers.Float64(resource.HeaderRequestCharge)
	if err != nil && dberr.RequestCharge(err) > 0 {
		r.RequestCharge = dberr.RequestCharge(err)
	}

	if err != nil {
		r.IsValid = isAuthoritative(err) && r.LSN >= 0
	}
	return r
}

// isAuthoritative reports errors that describe the state of the resource
// rather than the state of the replica
func isAuthoritative(err error) bool {
	switch dberr.StatusCode(err) {
	case dberr.StatusNotFound:
		return dberr.SubStatusOf(err) != dberr.SubStatusReadSessionNotAvailable
	case dberr.StatusConflict, dberr.StatusPreconditionFailed:
		return true
	default:
		return false
	}
}

// ToResponse turns the result into the value seen by the caller. The total
// request charge of the operation is stamped onto the response or error.
func (r *StoreReadResult) ToResponse(tracker *resource.ChargeTracker) (*resource.StoreResponse, error) {
	var total float64
	if tracker != nil {
		total = tracker.Total()
	}

	if !r.IsValid {
		if r.Err == nil {
			return nil, dberr.Internal("read result of "+r.URI+" was never validated", nil)
		}
		return nil, dberr.WithRequestCharge(r.Err, total)
	}
	if r.Err != nil {
		return nil, dberr.WithRequestCharge(r.Err, total)
	}
	r.Response.SetRequestCharge(total)
	return r.Response, nil
}
