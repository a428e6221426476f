package address

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/cache"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("address")

// Query describes the addresses to read from the gateway
type Query struct {
	// Master is set for master resources, ResourceAddress then names the
	// resource. Otherwise CollectionRID and RangeID name the partition.
	Master          bool
	ResourceAddress string
	CollectionRID   string
	RangeID         string
	Protocol        string
	ForceRefresh    bool
}

// ISource reads replica addresses from the gateway of an endpoint
type ISource interface {
	FetchAddresses(ctx context.Context, endpoint string, q Query) ([]Info, error)
}

// GatewayAddressCache caches the addresses served by one regional gateway
type GatewayAddressCache struct {
	endpoint  string
	protocol  string
	source    ISource
	addresses *cache.AsyncCache[string, *Set]
}

// NewGatewayAddressCache creates the cache of endpoint
func NewGatewayAddressCache(endpoint, protocol string, source ISource, collector *stats.Collector) *GatewayAddressCache {
	return &GatewayAddressCache{
		endpoint:  endpoint,
		protocol:  protocol,
		source:    source,
		addresses: cache.NewAsyncCache[string, *Set]("addresses", collector),
	}
}

// Resolve returns the addresses of the replica set serving req. The gateway
// is called if the set is not cached or forceRefresh is set; in the latter
// case concurrent refreshes of the same set share one call.
func (c *GatewayAddressCache) Resolve(ctx context.Context, req *resource.Request, forceRefresh bool) (*Set, error) {
	key, err := LookupKey(req)
	if err != nil {
		return nil, err
	}

	q := Query{Protocol: c.protocol, ForceRefresh: forceRefresh}
	if IsReadingFromMaster(req.ResourceType, req.Operation) {
		q.Master = true
		q.ResourceAddress = req.ResourceAddress
	} else {
		q.CollectionRID = req.Context.ResolvedCollectionRID
		q.RangeID = req.Context.ResolvedRange.ID
	}

	var obsolete *Set
	if forceRefresh {
		obsolete, _ = c.addresses.TryGet(key)
		Logger.Debugf("refreshing addresses of %s at %s", key, c.endpoint)
	}

	return c.addresses.Get(ctx, key, obsolete, func(ctx context.Context) (*Set, error) {
		addresses, err := c.source.FetchAddresses(ctx, c.endpoint, q)
		if err != nil {
			return nil, err
		}
		filtered := Filter(addresses, c.protocol)
		if len(filtered) == 0 {
			Logger.Warningf("gateway %s returned no usable address for %s", c.endpoint, key)
		}
		return &Set{Addresses: filtered}, nil
	})
}

// Invalidate drops the cached addresses of the partition of req
func (c *GatewayAddressCache) Invalidate(req *resource.Request) {
	if key, err := LookupKey(req); err == nil {
		c.addresses.Remove(key)
	}
}
