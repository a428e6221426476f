package resource

import (
	"strconv"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/routing"
)

// Header names of the wire protocol
const (
	HeaderActivityID              = "x-ms-activity-id"
	HeaderAuthorization           = "authorization"
	HeaderDate                    = "x-ms-date"
	HeaderVersion                 = "x-ms-version"
	HeaderConsistencyLevel        = "x-ms-consistency-level"
	HeaderSessionToken            = "x-ms-session-token"
	HeaderPartitionKey            = "x-ms-documentdb-partitionkey"
	HeaderPartitionKeyRangeID     = "x-ms-documentdb-partitionkeyrangeid"
	HeaderEnableCrossPartition    = "x-ms-documentdb-query-enablecrosspartition"
	HeaderIsQuery                 = "x-ms-documentdb-isquery"
	HeaderIsUpsert                = "x-ms-documentdb-is-upsert"
	HeaderMaxItemCount            = "x-ms-max-item-count"
	HeaderContinuation            = routing.HeaderContinuation
	HeaderLSN                     = "lsn"
	HeaderItemLSN                 = "x-ms-item-lsn"
	HeaderGlobalCommittedLSN      = "x-ms-global-committed-lsn"
	HeaderQuorumAckedLSN          = "x-ms-quorum-acked-lsn"
	HeaderCurrentReplicaSetSize   = "x-ms-current-replica-set-size"
	HeaderCurrentWriteQuorum      = "x-ms-current-write-quorum"
	HeaderNumberOfReadRegions     = "x-ms-number-of-read-regions"
	HeaderRequestCharge           = dberr.HeaderRequestCharge
	HeaderSubStatus               = dberr.HeaderSubStatus
	HeaderRetryAfterMs            = dberr.HeaderRetryAfterMs
	HeaderETag                    = "etag"
	HeaderIfNoneMatch             = "if-none-match"
	HeaderAIM                     = "a-im"
	HeaderContentType             = "content-type"
	HeaderForceRefresh            = "x-ms-force-refresh"
	HeaderCollectionRID           = "x-ms-collection-rid"
	HeaderOwnerFullName           = "x-ms-alt-content-path"
)

// APIVersion is sent with every request
const APIVersion = "2018-12-31"

// Headers are the request or response headers. Names are lower case.
type Headers map[string]string

// Get returns the value of name, "" if absent
func (h Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	return h[name]
}

// Set sets name to value
func (h Headers) Set(name, value string) {
	h[name] = value
}

// Del removes name
func (h Headers) Del(name string) {
	delete(h, name)
}

// Clone returns a copy of h, never nil
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Int64 parses the value of name, ok is false if absent or not a number
func (h Headers) Int64(name string) (int64, bool) {
	v, err := strconv.ParseInt(h.Get(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Float64 parses the value of name, ok is false if absent or not a number
func (h Headers) Float64(name string) (float64, bool) {
	v, err := strconv.ParseFloat(h.Get(name), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
