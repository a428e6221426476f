package routing

import (
	"context"
	"sync"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delta struct {
	ranges []PartitionKeyRange
	etag   string
}

// fakeSource serves a full range list plus incremental deltas keyed by etag
type fakeSource struct {
	mu       sync.Mutex
	full     []PartitionKeyRange
	fullETag string
	deltas   map[string]delta
	calls    []string
	notFound bool
}

func newFakeSource(ranges []PartitionKeyRange) *fakeSource {
	return &fakeSource{full: ranges, fullETag: "etag-1", deltas: map[string]delta{}}
}

func (s *fakeSource) ReadPartitionKeyRanges(_ context.Context, _ string, ifNoneMatch string) ([]PartitionKeyRange, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ifNoneMatch)
	if s.notFound {
		return nil, "", dberr.NotFound("collection deleted")
	}
	if ifNoneMatch == "" {
		return s.full, s.fullETag, nil
	}
	if d, ok := s.deltas[ifNoneMatch]; ok {
		return d.ranges, d.etag, nil
	}
	return nil, ifNoneMatch, nil
}

func (s *fakeSource) split(parent string, children ...PartitionKeyRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var full []PartitionKeyRange
	for _, r := range s.full {
		if r.ID != parent {
			full = append(full, r)
		}
	}
	s.full = append(full, children...)
	s.deltas[s.fullETag] = delta{ranges: children, etag: s.fullETag + "+"}
	s.fullETag += "+"
}

func (s *fakeSource) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestRangeCacheLoadsOnce(t *testing.T) {
	src := newFakeSource(sevenRanges())
	c := NewRangeCache(src, nil)
	ctx := context.Background()

	m1, err := c.TryLookup(ctx, "coll", nil)
	require.NoError(t, err)
	m2, err := c.TryLookup(ctx, "coll", nil)
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.Equal(t, []string{""}, src.callLog())
}

func TestRangeCacheIncrementalRefreshAfterSplit(t *testing.T) {
	src := newFakeSource(sevenRanges())
	c := NewRangeCache(src, nil)
	ctx := context.Background()

	m1, err := c.TryLookup(ctx, "coll", nil)
	require.NoError(t, err)

	src.split("3", pkr("7", "0012", "0013", "3"), pkr("8", "0013", "0015", "3"))

	m2, err := c.TryLookup(ctx, "coll", m1)
	require.NoError(t, err)
	assert.NotSame(t, m1, m2)
	assert.Equal(t, []string{"", "etag-1"}, src.callLog())

	r, err := c.TryGetRangeByEffectivePartitionKey(ctx, "coll", "00131")
	require.NoError(t, err)
	assert.Equal(t, "8", r.ID)
}

func TestRangeCacheFallsBackToFullRead(t *testing.T) {
	src := newFakeSource(sevenRanges())
	c := NewRangeCache(src, nil)
	ctx := context.Background()

	m1, err := c.TryLookup(ctx, "coll", nil)
	require.NoError(t, err)

	// a delta with only one child does not combine into a complete map
	src.split("3", pkr("7", "0012", "0013", "3"), pkr("8", "0013", "0015", "3"))
	src.deltas["etag-1"] = delta{ranges: []PartitionKeyRange{pkr("7", "0012", "0013", "3")}, etag: "etag-1+"}

	m2, err := c.TryLookup(ctx, "coll", m1)
	require.NoError(t, err)
	assert.Equal(t, 8, m2.Len())
	assert.Equal(t, []string{"", "etag-1", ""}, src.callLog())
}

func TestRangeCacheForceRefresh(t *testing.T) {
	src := newFakeSource(sevenRanges())
	c := NewRangeCache(src, nil)
	ctx := context.Background()

	_, err := c.TryGetOverlappingRanges(ctx, "coll", FullRange(), false)
	require.NoError(t, err)
	src.split("3", pkr("7", "0012", "0013", "3"), pkr("8", "0013", "0015", "3"))

	stale, err := c.TryGetOverlappingRanges(ctx, "coll", NewRange("0012", "0015", true, false), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(stale))

	fresh, err := c.TryGetOverlappingRanges(ctx, "coll", NewRange("0012", "0015", true, false), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8"}, ids(fresh))
}

func TestRangeCacheTryGetRangeByID(t *testing.T) {
	src := newFakeSource(sevenRanges())
	c := NewRangeCache(src, nil)
	ctx := context.Background()

	r, err := c.TryGetRangeByID(ctx, "coll", "4", false)
	require.NoError(t, err)
	assert.Equal(t, "0015", r.MinInclusive)

	// an unknown id refreshes once
	src.split("3", pkr("7", "0012", "0013", "3"), pkr("8", "0013", "0015", "3"))
	r, err = c.TryGetRangeByID(ctx, "coll", "8", false)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "0013", r.MinInclusive)

	// a gone id does not refresh again
	calls := len(src.callLog())
	r, err = c.TryGetRangeByID(ctx, "coll", "3", false)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Len(t, src.callLog(), calls)
}

func TestRangeCacheCollectionNotFound(t *testing.T) {
	src := newFakeSource(sevenRanges())
	src.notFound = true
	c := NewRangeCache(src, nil)

	m, err := c.TryLookup(context.Background(), "coll", nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	ranges, err := c.TryGetOverlappingRanges(context.Background(), "coll", FullRange(), false)
	require.NoError(t, err)
	assert.Nil(t, ranges)
}
