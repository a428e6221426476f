// Package fakes provides in memory stand-ins for the gateway metadata service
// and for replicas, shared by the tests of the client packages.
package fakes

import (
	"context"
	"strconv"
	"sync"

	"github.com/ValentinKolb/dDoc/lib/address"
	"github.com/ValentinKolb/dDoc/lib/collection"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/endpoint"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/routing"
)

// Metadata is an in memory metadata service. It implements collection.ISource,
// routing.IRangeSource, address.ISource and endpoint.IAccountSource.
type Metadata struct {
	mu sync.Mutex

	collections map[string]*collection.Collection
	ranges      map[string][]routing.PartitionKeyRange
	rangeETags  map[string]int
	deltas      map[string]map[string][]routing.PartitionKeyRange
	addresses   map[string][]address.Info
	account     *endpoint.DatabaseAccount

	// emptyAddresses is the number of address reads that return no address
	emptyAddresses int

	calls map[string]int
}

// NewMetadata creates an empty metadata service
func NewMetadata() *Metadata {
	return &Metadata{
		collections: map[string]*collection.Collection{},
		ranges:      map[string][]routing.PartitionKeyRange{},
		rangeETags:  map[string]int{},
		deltas:      map[string]map[string][]routing.PartitionKeyRange{},
		addresses:   map[string][]address.Info{},
		calls:       map[string]int{},
	}
}

// AddCollection registers a collection under its name based link and its rid.
// Without ranges the collection has the single range "0".
func (m *Metadata) AddCollection(link, rid string, def *pkey.Definition, ranges ...routing.PartitionKeyRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ranges) == 0 {
		ranges = []routing.PartitionKeyRange{{
			ID:           "0",
			MinInclusive: pkey.MinimumInclusiveEffectivePartitionKey,
			MaxExclusive: pkey.MaximumExclusiveEffectivePartitionKey,
		}}
	}
	coll := &collection.Collection{ID: link, ResourceID: rid, PartitionKey: def}
	m.collections[link] = coll
	m.collections[rid] = coll
	m.ranges[rid] = ranges
	m.rangeETags[rid] = 1
}

// Split replaces range parent of collection rid with children
func (m *Metadata) Split(rid, parent string, children ...routing.PartitionKeyRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next []routing.PartitionKeyRange
	for _, r := range m.ranges[rid] {
		if r.ID != parent {
			next = append(next, r)
		}
	}
	for i := range children {
		children[i].Parents = append(children[i].Parents, parent)
	}
	m.ranges[rid] = append(next, children...)

	etag := m.etag(rid)
	if m.deltas[rid] == nil {
		m.deltas[rid] = map[string][]routing.PartitionKeyRange{}
	}
	m.deltas[rid][etag] = children
	m.rangeETags[rid]++
}

// SetAddresses sets the replica addresses of a partition of collection rid
func (m *Metadata) SetAddresses(rid, rangeID string, addresses ...address.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[rid+"/"+rangeID] = addresses
}

// SetMasterAddresses sets the addresses of the master partition
func (m *Metadata) SetMasterAddresses(addresses ...address.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses["master"] = addresses
}

// ReturnEmptyAddresses makes the next n address reads return no address
func (m *Metadata) ReturnEmptyAddresses(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emptyAddresses = n
}

// SetAccount sets the database account
func (m *Metadata) SetAccount(account *endpoint.DatabaseAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = account
}

// Calls returns how often the given source method was called
func (m *Metadata) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// --------------------------------------------------------------------------
// Interface Methods
// --------------------------------------------------------------------------

// ReadCollection implements collection.ISource
func (m *Metadata) ReadCollection(_ context.Context, link string) (*collection.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ReadCollection"]++
	coll, ok := m.collections[link]
	if !ok {
		return nil, dberr.NotFound("collection " + link + " not found")
	}
	cp := *coll
	return &cp, nil
}

// ReadPartitionKeyRanges implements routing.IRangeSource
func (m *Metadata) ReadPartitionKeyRanges(_ context.Context, rid, ifNoneMatch string) ([]routing.PartitionKeyRange, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ReadPartitionKeyRanges"]++
	ranges, ok := m.ranges[rid]
	if !ok {
		return nil, "", dberr.NotFound("collection " + rid + " not found")
	}
	if ifNoneMatch == "" {
		return append([]routing.PartitionKeyRange(nil), ranges...), m.etag(rid), nil
	}
	return append([]routing.PartitionKeyRange(nil), m.deltas[rid][ifNoneMatch]...), m.etag(rid), nil
}

// FetchAddresses implements address.ISource
func (m *Metadata) FetchAddresses(_ context.Context, _ string, q address.Query) ([]address.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FetchAddresses"]++
	if m.emptyAddresses > 0 {
		m.emptyAddresses--
		return nil, nil
	}
	key := "master"
	if !q.Master {
		key = q.CollectionRID + "/" + q.RangeID
	}
	return append([]address.Info(nil), m.addresses[key]...), nil
}

// ReadDatabaseAccount implements endpoint.IAccountSource
func (m *Metadata) ReadDatabaseAccount(_ context.Context, _ string) (*endpoint.DatabaseAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ReadDatabaseAccount"]++
	if m.account == nil {
		return &endpoint.DatabaseAccount{ID: "fake"}, nil
	}
	cp := *m.account
	return &cp, nil
}

func (m *Metadata) etag(rid string) string {
	return "etag-" + strconv.Itoa(m.rangeETags[rid])
}
