package resource

import (
	"strconv"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"go.uber.org/atomic"
)

// StoreResponse is the successful response of a replica or the gateway
type StoreResponse struct {
	Status  int
	Headers Headers
	Body    []byte
}

// LSN returns the logical sequence number of the replica, -1 if unknown
func (r *StoreResponse) LSN() int64 {
	if v, ok := r.Headers.Int64(HeaderLSN); ok {
		return v
	}
	return -1
}

// ItemLSN returns the LSN of the returned item, -1 if unknown
func (r *StoreResponse) ItemLSN() int64 {
	if v, ok := r.Headers.Int64(HeaderItemLSN); ok {
		return v
	}
	return -1
}

// RequestCharge returns the request units consumed by the request
func (r *StoreResponse) RequestCharge() float64 {
	v, _ := r.Headers.Float64(HeaderRequestCharge)
	return v
}

// SetRequestCharge stamps the total request charge onto the response
func (r *StoreResponse) SetRequestCharge(charge float64) {
	if r.Headers == nil {
		r.Headers = Headers{}
	}
	r.Headers.Set(HeaderRequestCharge, strconv.FormatFloat(charge, 'f', -1, 64))
}

// SessionToken returns the session token of the response
func (r *StoreResponse) SessionToken() string {
	return r.Headers.Get(HeaderSessionToken)
}

// PartitionKeyRangeID returns the id of the serving partition
func (r *StoreResponse) PartitionKeyRangeID() string {
	return r.Headers.Get(HeaderPartitionKeyRangeID)
}

// Continuation returns the continuation token of a feed response
func (r *StoreResponse) Continuation() string {
	return r.Headers.Get(HeaderContinuation)
}

// IsSuccess reports a 2xx or 304 status
func IsSuccess(status int) bool {
	return (status >= 200 && status < 300) || status == dberr.StatusNotModified
}

// ChargeTracker sums the request charge of all attempts of an operation. It is
// safe for use by the goroutines of a quorum read.
type ChargeTracker struct {
	total atomic.Float64
}

// Add adds charge to the total
func (t *ChargeTracker) Add(charge float64) {
	t.total.Add(charge)
}

// Total returns the accumulated charge
func (t *ChargeTracker) Total() float64 {
	return t.total.Load()
}
