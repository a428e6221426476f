package collection

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	rid   string
	calls atomic.Int32
}

func (s *fakeSource) ReadCollection(_ context.Context, link string) (*Collection, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if link == "dbs/db/colls/missing" {
		return nil, dberr.NotFound("no such collection")
	}
	return &Collection{
		ID:           "c",
		ResourceID:   s.rid,
		PartitionKey: &pkey.Definition{Paths: []string{"/tenant"}},
	}, nil
}

func (s *fakeSource) recreate(rid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rid = rid
}

func TestResolveCollectionByName(t *testing.T) {
	src := &fakeSource{rid: "rid1"}
	c := NewCache(src, nil)
	ctx := context.Background()

	req := resource.NewRequest(resource.OpRead, resource.TypeDocument, "dbs/db/colls/c/docs/d1", nil, nil)
	coll, err := c.ResolveCollection(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "rid1", coll.ResourceID)
	assert.Equal(t, "rid1", req.Context.ResolvedCollectionRID)

	_, err = c.ResolveCollection(ctx, resource.NewRequest(resource.OpRead, resource.TypeDocument, "dbs/db/colls/c/docs/d2", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	// the rid cache was filled by the name lookup
	byRID, err := c.ResolveByRID(ctx, "rid1", "")
	require.NoError(t, err)
	assert.Same(t, coll, byRID)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestForceNameCacheRefresh(t *testing.T) {
	src := &fakeSource{rid: "rid1"}
	c := NewCache(src, nil)
	ctx := context.Background()

	_, err := c.ResolveByName(ctx, "dbs/db/colls/c")
	require.NoError(t, err)

	src.recreate("rid2")
	req := resource.NewRequest(resource.OpRead, resource.TypeDocument, "dbs/db/colls/c/docs/d1", nil, nil)
	req.ForceNameCacheRefresh = true

	coll, err := c.ResolveCollection(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "rid2", coll.ResourceID)
	assert.False(t, req.ForceNameCacheRefresh, "flag is cleared once the refresh completed")
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestResolveCollectionByRangeIdentity(t *testing.T) {
	src := &fakeSource{rid: "rid1"}
	c := NewCache(src, nil)

	req := resource.NewRequest(resource.OpReadFeed, resource.TypeDocument, "dbs/db/colls/c/docs", nil, nil)
	req.RangeIdentity = &resource.RangeIdentity{CollectionRID: "rid1", RangeID: "0"}

	coll, err := c.ResolveCollection(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "rid1", coll.ResourceID)
}

func TestResolveCollectionErrors(t *testing.T) {
	c := NewCache(&fakeSource{rid: "rid1"}, nil)
	ctx := context.Background()

	_, err := c.ResolveCollection(ctx, resource.NewRequest(resource.OpRead, resource.TypeDatabase, "dbs/db", nil, nil))
	assert.True(t, dberr.Is(err, dberr.ErrInvalidArgument))

	_, err = c.ResolveByName(ctx, "dbs/db/colls/missing")
	assert.True(t, dberr.IsNotFound(err))
}

func TestRemove(t *testing.T) {
	src := &fakeSource{rid: "rid1"}
	c := NewCache(src, nil)
	ctx := context.Background()

	_, err := c.ResolveByName(ctx, "dbs/db/colls/c")
	require.NoError(t, err)
	c.Remove("dbs/db/colls/c")

	_, err = c.ResolveByName(ctx, "dbs/db/colls/c")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}
