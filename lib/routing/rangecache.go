package routing

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/cache"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("routing")

// IRangeSource reads the partition key ranges of a collection. With an empty
// ifNoneMatch all ranges are returned, otherwise only the ranges that changed
// since that etag. The returned etag is the continuation for the next call.
type IRangeSource interface {
	ReadPartitionKeyRanges(ctx context.Context, collectionRID, ifNoneMatch string) ([]PartitionKeyRange, string, error)
}

// IRoutingMapProvider resolves effective partition keys of a collection to ranges
type IRoutingMapProvider interface {
	// TryGetOverlappingRanges returns the ranges overlapping r, nil if the
	// collection does not exist. forceRefresh reloads the routing map first.
	TryGetOverlappingRanges(ctx context.Context, collectionRID string, r Range[string], forceRefresh bool) ([]PartitionKeyRange, error)

	// TryGetRangeByEffectivePartitionKey returns the range owning epk, nil if
	// the collection does not exist
	TryGetRangeByEffectivePartitionKey(ctx context.Context, collectionRID, epk string) (*PartitionKeyRange, error)
}

// RangeCache caches one routing map per collection resource id
type RangeCache struct {
	source IRangeSource
	maps   *cache.AsyncCache[string, *CollectionRoutingMap]
}

// NewRangeCache creates a cache reading from source
func NewRangeCache(source IRangeSource, collector *stats.Collector) *RangeCache {
	return &RangeCache{
		source: source,
		maps:   cache.NewAsyncCache[string, *CollectionRoutingMap]("pkranges", collector),
	}
}

// TryLookup returns the routing map of a collection. If the cached map is
// previous, a newer one is loaded. A collection that does not exist yields nil.
func (c *RangeCache) TryLookup(ctx context.Context, collectionRID string, previous *CollectionRoutingMap) (*CollectionRoutingMap, error) {
	m, err := c.maps.Get(ctx, collectionRID, previous, func(ctx context.Context) (*CollectionRoutingMap, error) {
		return c.load(ctx, collectionRID, previous)
	})
	if dberr.IsNotFound(err) {
		Logger.Debugf("collection %s not found while loading its routing map", collectionRID)
		return nil, nil
	}
	return m, err
}

// TryGetOverlappingRanges implements IRoutingMapProvider
func (c *RangeCache) TryGetOverlappingRanges(ctx context.Context, collectionRID string, r Range[string], forceRefresh bool) ([]PartitionKeyRange, error) {
	m, err := c.lookup(ctx, collectionRID, forceRefresh)
	if err != nil || m == nil {
		return nil, err
	}
	return m.OverlappingRanges(r), nil
}

// TryGetRangeByEffectivePartitionKey implements IRoutingMapProvider
func (c *RangeCache) TryGetRangeByEffectivePartitionKey(ctx context.Context, collectionRID, epk string) (*PartitionKeyRange, error) {
	m, err := c.TryLookup(ctx, collectionRID, nil)
	if err != nil || m == nil {
		return nil, err
	}
	r, ok := m.RangeByEffectivePartitionKey(epk)
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// TryGetRangeByID returns the range with the given id. A range that is not
// part of the cached map triggers one refresh.
func (c *RangeCache) TryGetRangeByID(ctx context.Context, collectionRID, id string, forceRefresh bool) (*PartitionKeyRange, error) {
	m, err := c.lookup(ctx, collectionRID, forceRefresh)
	if err != nil || m == nil {
		return nil, err
	}
	if r, ok := m.RangeByID(id); ok {
		return &r, nil
	}
	if forceRefresh || m.IsGone(id) {
		return nil, nil
	}

	if m, err = c.TryLookup(ctx, collectionRID, m); err != nil || m == nil {
		return nil, err
	}
	if r, ok := m.RangeByID(id); ok {
		return &r, nil
	}
	return nil, nil
}

// Remove drops the cached map, e.g. after a collection was recreated
func (c *RangeCache) Remove(collectionRID string) {
	c.maps.Remove(collectionRID)
}

func (c *RangeCache) lookup(ctx context.Context, collectionRID string, forceRefresh bool) (*CollectionRoutingMap, error) {
	m, err := c.TryLookup(ctx, collectionRID, nil)
	if err != nil || m == nil || !forceRefresh {
		return m, err
	}
	return c.TryLookup(ctx, collectionRID, m)
}

// load reads the change feed of ranges. With a previous map only the changes
// are read and combined; if they do not combine into a complete map, all
// ranges are read again.
func (c *RangeCache) load(ctx context.Context, collectionRID string, previous *CollectionRoutingMap) (*CollectionRoutingMap, error) {
	if previous != nil {
		ranges, etag, err := c.source.ReadPartitionKeyRanges(ctx, collectionRID, previous.ChangeFeedETag())
		if err != nil {
			return nil, err
		}
		combined, err := previous.TryCombine(withoutInfo(ranges), etag)
		if err == nil {
			return combined, nil
		}
		Logger.Warningf("incremental routing map refresh of %s failed, reading all ranges: %v", collectionRID, err)
	}

	ranges, etag, err := c.source.ReadPartitionKeyRanges(ctx, collectionRID, "")
	if err != nil {
		return nil, err
	}
	return NewCompleteRoutingMap(withoutInfo(ranges), collectionRID, etag)
}

func withoutInfo(ranges []PartitionKeyRange) []RangeWithInfo {
	out := make([]RangeWithInfo, len(ranges))
	for i, r := range ranges {
		out[i] = RangeWithInfo{Range: r}
	}
	return out
}
