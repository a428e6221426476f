package address

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/collection"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/puzpuzpuz/xsync/v3"
)

// IEndpointResolver picks the regional endpoint of a request
type IEndpointResolver interface {
	ResolveServiceEndpoint(req *resource.Request) string
}

// Resolver resolves requests to replica addresses across all regional
// endpoints of an account
type Resolver struct {
	protocol    string
	source      ISource
	collector   *stats.Collector
	endpoints   IEndpointResolver
	collections *collection.Cache
	ranges      *routing.RangeCache
	caches      *xsync.MapOf[string, *GatewayAddressCache]
}

// NewResolver creates a resolver
func NewResolver(
	protocol string,
	source ISource,
	endpoints IEndpointResolver,
	collections *collection.Cache,
	ranges *routing.RangeCache,
	collector *stats.Collector,
) *Resolver {
	return &Resolver{
		protocol:    protocol,
		source:      source,
		collector:   collector,
		endpoints:   endpoints,
		collections: collections,
		ranges:      ranges,
		caches:      xsync.NewMapOf[string, *GatewayAddressCache](),
	}
}

// Resolve returns the addresses of the replica set serving req. The resolved
// collection and partition key range are recorded in the request context.
func (r *Resolver) Resolve(ctx context.Context, req *resource.Request, forceRefresh bool) (*Set, error) {
	if !IsReadingFromMaster(req.ResourceType, req.Operation) {
		if err := r.resolvePartition(ctx, req); err != nil {
			return nil, err
		}
	}
	return r.cacheFor(r.endpoints.ResolveServiceEndpoint(req)).Resolve(ctx, req, forceRefresh)
}

// cacheFor returns the address cache of a regional endpoint
func (r *Resolver) cacheFor(endpoint string) *GatewayAddressCache {
	c, _ := r.caches.LoadOrCompute(endpoint, func() *GatewayAddressCache {
		return NewGatewayAddressCache(endpoint, r.protocol, r.source, r.collector)
	})
	return c
}

// resolvePartition resolves the collection and partition key range of req.
// Stale caches are reported as 410 errors with the sub status that tells the
// retry policy which cache to refresh.
func (r *Resolver) resolvePartition(ctx context.Context, req *resource.Request) error {
	coll, err := r.collections.ResolveCollection(ctx, req)
	if err != nil {
		return err
	}

	m, err := r.ranges.TryLookup(ctx, coll.ResourceID, nil)
	if err == nil && m != nil && req.ForcePartitionKeyRangeRefresh {
		m, err = r.ranges.TryLookup(ctx, coll.ResourceID, m)
		if err == nil {
			req.ForcePartitionKeyRangeRefresh = false
		}
	}
	if err != nil {
		return err
	}
	if m == nil {
		return dberr.Newf(dberr.StatusGone, dberr.SubStatusNameCacheIsStale,
			"collection %s (%s) has no routing map, the name cache is stale", req.ResourceAddress, coll.ResourceID)
	}

	rng, err := r.targetRange(req, coll, m)
	if err != nil {
		return err
	}
	req.Context.ResolvedRange = rng
	return nil
}

func (r *Resolver) targetRange(req *resource.Request, coll *collection.Collection, m *routing.CollectionRoutingMap) (*routing.PartitionKeyRange, error) {
	if id := req.RangeIdentity; id != nil {
		rng, ok := m.RangeByID(id.RangeID)
		if !ok {
			return nil, dberr.Newf(dberr.StatusGone, dberr.SubStatusPartitionKeyRangeGone,
				"partition key range %s of collection %s is gone", id.RangeID, coll.ResourceID)
		}
		return &rng, nil
	}
	if id := req.Headers.Get(resource.HeaderPartitionKeyRangeID); id != "" {
		rng, ok := m.RangeByID(id)
		if !ok {
			return nil, dberr.Newf(dberr.StatusGone, dberr.SubStatusPartitionKeyRangeGone,
				"partition key range %s of collection %s is gone", id, coll.ResourceID)
		}
		return &rng, nil
	}

	raw := req.Headers.Get(resource.HeaderPartitionKey)
	if raw == "" {
		if m.Len() == 1 {
			rng := m.OrderedRanges()[0]
			return &rng, nil
		}
		return nil, dberr.Client(dberr.ErrCrossPartitionRequest, "%s %s", req.Operation, req.ResourceAddress)
	}

	key, err := pkey.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	epk, err := pkey.EffectivePartitionKeyString(key, coll.PartitionKey)
	if err != nil {
		return nil, err
	}
	rng, ok := m.RangeByEffectivePartitionKey(epk)
	if !ok {
		return nil, dberr.Newf(dberr.StatusGone, dberr.SubStatusPartitionKeyRangeGone,
			"no partition key range of collection %s owns %s", coll.ResourceID, epk)
	}
	return &rng, nil
}
