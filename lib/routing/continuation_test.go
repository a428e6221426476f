package routing

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeContinuationTokenFormat(t *testing.T) {
	token := CompositeContinuationToken{Token: "inner", Range: NewRange("000A", "000D", true, false)}
	assert.JSONEq(t,
		`{"token":"inner","range":{"min":"000A","max":"000D","isMinInclusive":true,"isMaxInclusive":false}}`,
		token.String())

	parsed, err := ParseCompositeContinuationToken(token.String())
	require.NoError(t, err)
	assert.Equal(t, token, parsed)
}

func TestExtractRangeFromContinuationToken(t *testing.T) {
	headers := map[string]string{}
	r, err := ExtractRangeFromContinuationToken(headers)
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())

	headers[HeaderContinuation] = CompositeContinuationToken{Token: "inner", Range: NewRange("000A", "000D", true, false)}.String()
	r, err = ExtractRangeFromContinuationToken(headers)
	require.NoError(t, err)
	assert.Equal(t, NewRange("000A", "000D", true, false), r)
	assert.Equal(t, "inner", headers[HeaderContinuation])

	headers[HeaderContinuation] = CompositeContinuationToken{Range: NewRange("000A", "000D", true, false)}.String()
	_, err = ExtractRangeFromContinuationToken(headers)
	require.NoError(t, err)
	_, ok := headers[HeaderContinuation]
	assert.False(t, ok)

	headers[HeaderContinuation] = "not json"
	_, err = ExtractRangeFromContinuationToken(headers)
	assert.True(t, dberr.Is(err, dberr.ErrInvalidContinuationToken))
}

func TestTryGetTargetRange(t *testing.T) {
	c := NewRangeCache(newFakeSource(sevenRanges()), nil)
	ctx := context.Background()

	// no provided ranges: first partition
	r, err := TryGetTargetRangeFromContinuationTokenRange(ctx, nil, c, "coll", EmptyRange())
	require.NoError(t, err)
	assert.Equal(t, "0", r.ID)

	// fresh query: partition of the smallest provided range
	provided := []Range[string]{NewRange("0030", "0050", true, false), NewRange("000B", "000C", true, false)}
	r, err = TryGetTargetRangeFromContinuationTokenRange(ctx, provided, c, "coll", EmptyRange())
	require.NoError(t, err)
	assert.Equal(t, "1", r.ID)

	// resumed query with a matching range
	r, err = TryGetTargetRangeFromContinuationTokenRange(ctx, provided, c, "coll", NewRange("0020", "0040", true, false))
	require.NoError(t, err)
	assert.Equal(t, "5", r.ID)
}

func TestTryGetTargetRangeDetectsSplit(t *testing.T) {
	src := newFakeSource(sevenRanges())
	c := NewRangeCache(src, nil)
	ctx := context.Background()
	provided := []Range[string]{FullRange()}

	_, err := c.TryLookup(ctx, "coll", nil)
	require.NoError(t, err)

	// the token was written before range 3 split, the cache already knows the children
	src.split("3", pkr("7", "0012", "0013", "3"), pkr("8", "0013", "0015", "3"))
	_, err = c.TryGetOverlappingRanges(ctx, "coll", FullRange(), true)
	require.NoError(t, err)

	r, err := TryGetTargetRangeFromContinuationTokenRange(ctx, provided, c, "coll", NewRange("0012", "0015", true, false))
	require.NoError(t, err)
	assert.Equal(t, "7", r.ID)

	// a token range that matches no layout is stale
	_, err = TryGetTargetRangeFromContinuationTokenRange(ctx, provided, c, "coll", NewRange("0011", "0015", true, false))
	assert.True(t, dberr.Is(err, ErrRoutingMapStale))
	assert.Equal(t, dberr.KindTopology, dberr.KindOf(err))
}

func TestTryAddRangeToContinuationToken(t *testing.T) {
	c := NewRangeCache(newFakeSource(sevenRanges()), nil)
	ctx := context.Background()
	provided := []Range[string]{NewRange("000B", "000E", true, false), NewRange("0030", "0045", true, false)}

	// more results in the current partition: wrap the inner token
	headers := map[string]string{HeaderContinuation: "inner"}
	current, _ := mustRange(t, c, "1")
	require.NoError(t, TryAddRangeToContinuationToken(ctx, headers, provided, c, "coll", current))
	token, err := ParseCompositeContinuationToken(headers[HeaderContinuation])
	require.NoError(t, err)
	assert.Equal(t, "inner", token.Token)
	assert.Equal(t, current.ToRange(), token.Range)

	// partition 1 exhausted: continue with partition 2
	headers = map[string]string{}
	require.NoError(t, TryAddRangeToContinuationToken(ctx, headers, provided, c, "coll", current))
	token, err = ParseCompositeContinuationToken(headers[HeaderContinuation])
	require.NoError(t, err)
	assert.Empty(t, token.Token)
	assert.Equal(t, NewRange("000D", "0012", true, false), token.Range)

	// partition 2 exhausted: skip to the partition of the next provided range
	current, _ = mustRange(t, c, "2")
	headers = map[string]string{}
	require.NoError(t, TryAddRangeToContinuationToken(ctx, headers, provided, c, "coll", current))
	token, err = ParseCompositeContinuationToken(headers[HeaderContinuation])
	require.NoError(t, err)
	assert.Equal(t, NewRange("0020", "0040", true, false), token.Range)

	// last partition exhausted: done, no token
	current, _ = mustRange(t, c, "6")
	headers = map[string]string{}
	require.NoError(t, TryAddRangeToContinuationToken(ctx, headers, provided, c, "coll", current))
	_, ok := headers[HeaderContinuation]
	assert.False(t, ok)
}

func mustRange(t *testing.T, c *RangeCache, id string) (PartitionKeyRange, bool) {
	t.Helper()
	r, err := c.TryGetRangeByID(context.Background(), "coll", id, false)
	require.NoError(t, err)
	require.NotNil(t, r)
	return *r, true
}

func TestSplitChildrenResumeFromParentToken(t *testing.T) {
	src := newFakeSource(sevenRanges())
	c := NewRangeCache(src, nil)
	ctx := context.Background()
	provided := []Range[string]{FullRange()}

	_, err := c.TryLookup(ctx, "coll", nil)
	require.NoError(t, err)
	parentRange := NewRange("0012", "0015", true, false)
	token := CompositeContinuationToken{Token: "after-x", Range: parentRange}

	src.split("3", pkr("7", "0012", "0013", "3"), pkr("8", "0013", "0015", "3"))
	_, err = c.TryGetOverlappingRanges(ctx, "coll", FullRange(), true)
	require.NoError(t, err)
	first, _ := mustRange(t, c, "7")
	second, _ := mustRange(t, c, "8")

	parent := SplitParent(token, first)
	require.NotNil(t, parent)
	assert.Equal(t, "after-x", parent.Token)
	assert.Equal(t, parentRange, parent.Range)

	// more results in the first child: its own token, the parent is kept
	headers := map[string]string{HeaderContinuation: "after-y"}
	require.NoError(t, TryAddRangeToSplitContinuationToken(ctx, headers, provided, c, "coll", first, parent))
	next, err := ParseCompositeContinuationToken(headers[HeaderContinuation])
	require.NoError(t, err)
	assert.Equal(t, "after-y", next.Token)
	assert.Equal(t, first.ToRange(), next.Range)
	require.NotNil(t, next.Parent)
	assert.Equal(t, "after-x", next.Parent.Token)

	// first child exhausted: the second one starts at the parent's token
	headers = map[string]string{}
	require.NoError(t, TryAddRangeToSplitContinuationToken(ctx, headers, provided, c, "coll", first, SplitParent(next, first)))
	next, err = ParseCompositeContinuationToken(headers[HeaderContinuation])
	require.NoError(t, err)
	assert.Equal(t, "after-x", next.Token)
	assert.Equal(t, second.ToRange(), next.Range)

	// last child exhausted: the parent is done, the query moves on from scratch
	headers = map[string]string{}
	require.NoError(t, TryAddRangeToSplitContinuationToken(ctx, headers, provided, c, "coll", second, SplitParent(next, second)))
	next, err = ParseCompositeContinuationToken(headers[HeaderContinuation])
	require.NoError(t, err)
	assert.Empty(t, next.Token)
	assert.Nil(t, next.Parent)
	assert.Equal(t, NewRange("0015", "0020", true, false), next.Range)

	// a split range read from its start needs no parent
	assert.Nil(t, SplitParent(CompositeContinuationToken{Range: parentRange}, first))
}
