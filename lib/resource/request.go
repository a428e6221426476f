package resource

import (
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/google/uuid"
)

// RangeIdentity addresses a partition key range directly, bypassing partition
// key resolution
type RangeIdentity struct {
	CollectionRID string
	RangeID       string
}

// RequestContext is the state the client accumulates while routing and
// dispatching one logical operation. It is owned by the goroutine running
// the operation.
type RequestContext struct {
	// ForceRefreshAddressCache makes the next address resolution bypass the
	// cache. It is cleared once the refresh completed.
	ForceRefreshAddressCache bool

	// ResolvedCollectionRID and ResolvedRange are set by the address resolver
	ResolvedCollectionRID string
	ResolvedRange         *routing.PartitionKeyRange

	// SessionToken is the partition local token ("<rangeID>:<lsn>") the
	// read has to observe
	SessionToken string

	// quorum read bookkeeping
	QuorumSelectedLSN          int64
	GlobalCommittedSelectedLSN int64

	// LocationEndpointToRoute overrides the regional endpoint the request is sent to
	LocationEndpointToRoute string
	// LocationIndexToRoute selects a preferred location by index, UsePreferredLocations
	// decides if it indexes the preferred or the available locations
	LocationIndexToRoute  int
	UsePreferredLocations bool

	ChargeTracker *ChargeTracker
}

// Request is one logical operation
type Request struct {
	ActivityID   string
	Operation    OperationType
	ResourceType Type

	// ResourceAddress is the path of the resource, e.g. dbs/db1/colls/c1/docs/d1.
	// For rid based requests the segments are resource ids.
	ResourceAddress string
	IsNameBased     bool

	Headers Headers
	Body    []byte

	// RangeIdentity is set for requests addressing a range by id
	RangeIdentity *RangeIdentity

	// ForceNameCacheRefresh and ForcePartitionKeyRangeRefresh are set by the
	// retry policies after a 410 with the corresponding sub status
	ForceNameCacheRefresh         bool
	ForcePartitionKeyRangeRefresh bool

	Context RequestContext
}

// NewRequest creates a name based request with a fresh activity id
func NewRequest(op OperationType, typ Type, address string, body []byte, headers Headers) *Request {
	if headers == nil {
		headers = Headers{}
	}
	activityID := uuid.NewString()
	headers.Set(HeaderActivityID, activityID)
	return &Request{
		ActivityID:      activityID,
		Operation:       op,
		ResourceType:    typ,
		ResourceAddress: address,
		IsNameBased:     true,
		Headers:         headers,
		Body:            body,
		Context: RequestContext{
			QuorumSelectedLSN:          -1,
			GlobalCommittedSelectedLSN: -1,
			ChargeTracker:              &ChargeTracker{},
		},
	}
}

// IsReadOnly reports whether the request does not modify data
func (r *Request) IsReadOnly() bool {
	return !r.Operation.IsWrite()
}

// Clone copies the request. Headers are copied, the body is shared.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Headers = r.Headers.Clone()
	if r.RangeIdentity != nil {
		id := *r.RangeIdentity
		cp.RangeIdentity = &id
	}
	return &cp
}

// RouteToLocation pins the request to a regional endpoint
func (r *Request) RouteToLocation(endpoint string) {
	r.Context.LocationEndpointToRoute = endpoint
}

// RouteToLocationIndex pins the request to a location by index
func (r *Request) RouteToLocationIndex(index int, usePreferredLocations bool) {
	r.Context.LocationIndexToRoute = index
	r.Context.UsePreferredLocations = usePreferredLocations
	r.Context.LocationEndpointToRoute = ""
}

// ClearRoute removes any location pinning
func (r *Request) ClearRoute() {
	r.Context.LocationEndpointToRoute = ""
	r.Context.LocationIndexToRoute = 0
	r.Context.UsePreferredLocations = false
}

// ChargeTracker returns the tracker of the request, creating it if needed
func (r *Request) ChargeTracker() *ChargeTracker {
	if r.Context.ChargeTracker == nil {
		r.Context.ChargeTracker = &ChargeTracker{}
	}
	return r.Context.ChargeTracker
}
