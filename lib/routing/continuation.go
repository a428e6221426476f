package routing

import (
	"context"
	"errors"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/goccy/go-json"
)

// HeaderContinuation carries the continuation token of paged reads
const HeaderContinuation = "x-ms-continuation"

// ErrRoutingMapStale is returned when the range a continuation token points to
// cannot be matched against the current routing map, even after a refresh
var ErrRoutingMapStale = errors.New("routing map is stale")

// CompositeContinuationToken is the continuation of a cross partition query:
// the token of the partition currently read and the range of that partition.
//
// Parent is set while the children of a split range are read. It holds the
// token the range had when the split was seen; the children not started yet
// resume from it.
type CompositeContinuationToken struct {
	Token  string                      `json:"token"`
	Range  Range[string]               `json:"range"`
	Parent *CompositeContinuationToken `json:"parent,omitempty"`
}

// ParseCompositeContinuationToken decodes the JSON form of a token
func ParseCompositeContinuationToken(s string) (CompositeContinuationToken, error) {
	var t CompositeContinuationToken
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return t, dberr.Client(dberr.ErrInvalidContinuationToken, "%s", s)
	}
	return t, nil
}

// String returns the JSON form of the token
func (t CompositeContinuationToken) String() string {
	b, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return string(b)
}

// ExtractRangeFromContinuationToken decodes the composite token of the
// continuation header. The header is replaced by the inner token (or removed
// if there is none) and the range the query had reached is returned. Without
// a continuation the empty range is returned, which marks a fresh query.
func ExtractRangeFromContinuationToken(headers map[string]string) (Range[string], error) {
	token, err := ExtractContinuationToken(headers)
	return token.Range, err
}

// ExtractContinuationToken is ExtractRangeFromContinuationToken returning the
// whole composite token
func ExtractContinuationToken(headers map[string]string) (CompositeContinuationToken, error) {
	provided := headers[HeaderContinuation]
	if provided == "" {
		return CompositeContinuationToken{Range: EmptyRange()}, nil
	}

	token, err := ParseCompositeContinuationToken(provided)
	if err != nil {
		return CompositeContinuationToken{}, err
	}

	if token.Token != "" {
		headers[HeaderContinuation] = token.Token
	} else {
		delete(headers, HeaderContinuation)
	}
	return token, nil
}

// SplitParent returns the parent a page read from current continues under.
// If current is not the range of the token, the range was split and the
// token itself becomes the parent of its children.
func SplitParent(token CompositeContinuationToken, current PartitionKeyRange) *CompositeContinuationToken {
	if token.Range.IsEmpty() || current.ToRange() == token.Range || token.Token == "" {
		return token.Parent
	}
	parent := token
	return &parent
}

// TryGetTargetRangeFromContinuationTokenRange returns the partition range a
// (resumed) query has to read next. nil means the collection does not exist.
//
// If the range of the token is no longer a range of the routing map, the map
// is refreshed; if the token range is then exactly covered by the new ranges
// (the partition was split) the first of them is returned, otherwise
// ErrRoutingMapStale.
func TryGetTargetRangeFromContinuationTokenRange(ctx context.Context, provided []Range[string], provider IRoutingMapProvider, collectionRID string, fromToken Range[string]) (*PartitionKeyRange, error) {
	if len(provided) == 0 {
		return provider.TryGetRangeByEffectivePartitionKey(ctx, collectionRID, pkey.MinimumInclusiveEffectivePartitionKey)
	}

	if fromToken.IsEmpty() {
		minimum := provided[0]
		for _, r := range provided[1:] {
			if MinComparator(r, minimum) < 0 {
				minimum = r
			}
		}
		return provider.TryGetRangeByEffectivePartitionKey(ctx, collectionRID, minimum.Min)
	}

	target, err := provider.TryGetRangeByEffectivePartitionKey(ctx, collectionRID, fromToken.Min)
	if err != nil || target == nil {
		return nil, err
	}
	if target.ToRange() == fromToken {
		return target, nil
	}

	Logger.Infof("range %s of continuation token no longer matches %s in collection %s, refreshing", fromToken, target.ToRange(), collectionRID)
	replaced, err := provider.TryGetOverlappingRanges(ctx, collectionRID, fromToken, true)
	if err != nil {
		return nil, err
	}
	if len(replaced) == 0 ||
		replaced[0].MinInclusive != fromToken.Min ||
		replaced[len(replaced)-1].MaxExclusive != fromToken.Max {
		return nil, dberr.WrapStatus(ErrRoutingMapStale, dberr.StatusGone, dberr.SubStatusPartitionKeyRangeGone,
			"collection %s, range %s", collectionRID, fromToken)
	}
	return &replaced[0], nil
}

// TryAddRangeToContinuationToken advances the continuation of a cross
// partition query. While the current partition has more results, its token is
// wrapped together with the partition range. When the partition is exhausted,
// the next provided range after current is resolved; if the query reached the
// end of the key space the continuation header is removed.
func TryAddRangeToContinuationToken(ctx context.Context, headers map[string]string, provided []Range[string], provider IRoutingMapProvider, collectionRID string, current PartitionKeyRange) error {
	return TryAddRangeToSplitContinuationToken(ctx, headers, provided, provider, collectionRID, current, nil)
}

// TryAddRangeToSplitContinuationToken is TryAddRangeToContinuationToken for a
// page read below parent (see SplitParent). Once current is exhausted, the
// next child of parent resumes from the parent's token; when the last child
// is done, the query continues after the parent range.
func TryAddRangeToSplitContinuationToken(ctx context.Context, headers map[string]string, provided []Range[string], provider IRoutingMapProvider, collectionRID string, current PartitionKeyRange, parent *CompositeContinuationToken) error {
	currentRange := current.ToRange()
	for parent != nil && parent.Range.Max <= currentRange.Max {
		parent = parent.Parent
	}

	inner := headers[HeaderContinuation]
	if inner != "" {
		headers[HeaderContinuation] = CompositeContinuationToken{Token: inner, Range: currentRange, Parent: parent}.String()
		return nil
	}

	if parent != nil {
		target, err := provider.TryGetRangeByEffectivePartitionKey(ctx, collectionRID, currentRange.Max)
		if err != nil {
			return err
		}
		if target == nil {
			return dberr.WrapStatus(ErrRoutingMapStale, dberr.StatusGone, dberr.SubStatusPartitionKeyRangeGone,
				"collection %s has no range for %s", collectionRID, currentRange.Max)
		}
		headers[HeaderContinuation] = CompositeContinuationToken{Token: parent.Token, Range: target.ToRange(), Parent: parent}.String()
		return nil
	}

	if currentRange.Max == pkey.MaximumExclusiveEffectivePartitionKey {
		delete(headers, HeaderContinuation)
		return nil
	}

	next, ok := minAfter(provided, currentRange)
	if !ok {
		delete(headers, HeaderContinuation)
		return nil
	}

	left := max(currentRange.Max, next.Min)
	target, err := provider.TryGetRangeByEffectivePartitionKey(ctx, collectionRID, left)
	if err != nil {
		return err
	}
	if target == nil {
		return dberr.WrapStatus(ErrRoutingMapStale, dberr.StatusGone, dberr.SubStatusPartitionKeyRangeGone,
			"collection %s has no range for %s", collectionRID, left)
	}

	headers[HeaderContinuation] = CompositeContinuationToken{Range: target.ToRange()}.String()
	return nil
}

// minAfter returns the smallest provided range ending after current
func minAfter(provided []Range[string], current Range[string]) (Range[string], bool) {
	var best Range[string]
	found := false
	for _, r := range provided {
		if MaxComparator(r, current) <= 0 {
			continue
		}
		if !found || MinComparator(r, best) < 0 {
			best, found = r, true
		}
	}
	return best, found
}
