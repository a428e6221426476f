// Package collection caches collection metadata (resource id and partition key
// definition) by name based link and by resource id.
package collection

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/cache"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("collection")

// Collection is the metadata of a document collection
type Collection struct {
	ID           string           `json:"id"`
	ResourceID   string           `json:"_rid"`
	SelfLink     string           `json:"_self,omitempty"`
	ETag         string           `json:"_etag,omitempty"`
	PartitionKey *pkey.Definition `json:"partitionKey,omitempty"`
}

// ISource reads a collection from the metadata service. link is either the
// name based link (dbs/db1/colls/c1) or the resource id based one.
type ISource interface {
	ReadCollection(ctx context.Context, link string) (*Collection, error)
}

// Cache resolves collections. Entries are replaced as a whole; a Collection
// returned by the cache must not be modified.
type Cache struct {
	source ISource
	byName *cache.AsyncCache[string, *Collection]
	byRID  *cache.AsyncCache[string, *Collection]
}

// NewCache creates a cache reading from source
func NewCache(source ISource, collector *stats.Collector) *Cache {
	return &Cache{
		source: source,
		byName: cache.NewAsyncCache[string, *Collection]("collections", collector),
		byRID:  cache.NewAsyncCache[string, *Collection]("collections_rid", collector),
	}
}

// ResolveCollection resolves the collection a request addresses and records
// its resource id in the request context. A pending name cache refresh of the
// request is performed first and then cleared.
func (c *Cache) ResolveCollection(ctx context.Context, req *resource.Request) (*Collection, error) {
	var (
		coll *Collection
		err  error
	)

	switch {
	case req.RangeIdentity != nil && req.RangeIdentity.CollectionRID != "":
		coll, err = c.ResolveByRID(ctx, req.RangeIdentity.CollectionRID, "")

	case req.IsNameBased:
		link, lerr := collectionLink(req.ResourceAddress)
		if lerr != nil {
			return nil, lerr
		}
		if req.ForceNameCacheRefresh {
			coll, err = c.refreshByName(ctx, link)
			if err == nil {
				req.ForceNameCacheRefresh = false
			}
		} else {
			coll, err = c.ResolveByName(ctx, link)
		}

	default:
		link, lerr := collectionLink(req.ResourceAddress)
		if lerr != nil {
			return nil, lerr
		}
		p, _ := resource.ParsePath(link)
		coll, err = c.ResolveByRID(ctx, p.IDOf(resource.TypeCollection), link)
	}
	if err != nil {
		return nil, err
	}

	req.Context.ResolvedCollectionRID = coll.ResourceID
	return coll, nil
}

// ResolveByName resolves a collection by its name based link
func (c *Cache) ResolveByName(ctx context.Context, link string) (*Collection, error) {
	return c.byName.Get(ctx, link, nil, c.readByName(link))
}

// ResolveByRID resolves a collection by its resource id. link is the
// resource id based link to read it from, if empty the rid is used.
func (c *Cache) ResolveByRID(ctx context.Context, rid, link string) (*Collection, error) {
	if link == "" {
		link = rid
	}
	return c.byRID.Get(ctx, rid, nil, func(ctx context.Context) (*Collection, error) {
		coll, err := c.source.ReadCollection(ctx, link)
		if err != nil {
			return nil, err
		}
		if err := validate(coll, link); err != nil {
			return nil, err
		}
		return coll, nil
	})
}

// Refresh reloads the collection a name based request addresses
func (c *Cache) Refresh(ctx context.Context, req *resource.Request) error {
	if !req.IsNameBased {
		return nil
	}
	link, err := collectionLink(req.ResourceAddress)
	if err != nil {
		return err
	}
	_, err = c.refreshByName(ctx, link)
	return err
}

// Remove forgets a collection, e.g. after it was deleted
func (c *Cache) Remove(link string) {
	if coll, ok := c.byName.TryGet(link); ok && coll != nil {
		c.byRID.Remove(coll.ResourceID)
	}
	c.byName.Remove(link)
}

func (c *Cache) refreshByName(ctx context.Context, link string) (*Collection, error) {
	current, _ := c.byName.TryGet(link)
	Logger.Debugf("refreshing collection %s", link)
	return c.byName.Get(ctx, link, current, c.readByName(link))
}

func (c *Cache) readByName(link string) cache.Factory[*Collection] {
	return func(ctx context.Context) (*Collection, error) {
		coll, err := c.source.ReadCollection(ctx, link)
		if err != nil {
			return nil, err
		}
		if err := validate(coll, link); err != nil {
			return nil, err
		}
		c.byRID.Set(coll.ResourceID, coll)
		return coll, nil
	}
}

func validate(coll *Collection, link string) error {
	if coll == nil || coll.ResourceID == "" {
		return dberr.Internal("metadata service returned a collection without resource id for "+link, nil)
	}
	return nil
}

func collectionLink(address string) (string, error) {
	p, err := resource.ParsePath(address)
	if err != nil {
		return "", err
	}
	link := p.CollectionLink()
	if link == "" {
		return "", dberr.Client(dberr.ErrInvalidArgument, "address %q is not inside a collection", address)
	}
	return link, nil
}
