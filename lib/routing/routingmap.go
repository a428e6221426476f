package routing

import (
	"errors"
	"sort"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/google/btree"
)

// Construction failures of a routing map
var (
	ErrIncompleteRoutingMap = errors.New("partition key ranges do not cover the key space")
	ErrOverlappingRanges    = errors.New("partition key ranges overlap")
	ErrDuplicateRangeID     = errors.New("partition key range id is not unique")
)

const btreeDegree = 8

// rangeItem is the btree entry of a range, ordered by the minimum
type rangeItem struct {
	min   string
	index int
}

func (i rangeItem) Less(than btree.Item) bool {
	return i.min < than.(rangeItem).min
}

// CollectionRoutingMap is an immutable, complete set of partition key ranges
// of one collection. A map only exists if its ranges are contiguous, do not
// overlap and span ["", "FF").
type CollectionRoutingMap struct {
	collectionUniqueID string
	changeFeedETag     string

	ordered []RangeWithInfo
	byID    map[string]int
	index   *btree.BTree
	gone    map[string]struct{}
}

// NewCompleteRoutingMap validates and indexes ranges. etag is the change feed
// continuation the ranges were read with and is used for incremental refreshes.
func NewCompleteRoutingMap(ranges []RangeWithInfo, collectionUniqueID, etag string) (*CollectionRoutingMap, error) {
	byID := make(map[string]int, len(ranges))
	for _, r := range ranges {
		if _, ok := byID[r.Range.ID]; ok {
			return nil, dberr.WrapStatus(ErrDuplicateRangeID, dberr.StatusInternalServerError, dberr.SubStatusUnknown,
				"collection %s, range %s", collectionUniqueID, r.Range.ID)
		}
		byID[r.Range.ID] = 0
	}
	return build(ranges, collectionUniqueID, etag, map[string]struct{}{})
}

// build sorts, validates and indexes ranges whose ids are known to be unique
func build(ranges []RangeWithInfo, collectionUniqueID, etag string, gone map[string]struct{}) (*CollectionRoutingMap, error) {
	ordered := make([]RangeWithInfo, len(ranges))
	copy(ordered, ranges)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Range, ordered[j].Range
		if a.MinInclusive != b.MinInclusive {
			return a.MinInclusive < b.MinInclusive
		}
		return a.MaxExclusive < b.MaxExclusive
	})

	if err := checkComplete(ordered, collectionUniqueID); err != nil {
		return nil, err
	}

	m := &CollectionRoutingMap{
		collectionUniqueID: collectionUniqueID,
		changeFeedETag:     etag,
		ordered:            ordered,
		byID:               make(map[string]int, len(ordered)),
		index:              btree.New(btreeDegree),
		gone:               gone,
	}
	for i, r := range ordered {
		m.byID[r.Range.ID] = i
		m.index.ReplaceOrInsert(rangeItem{min: r.Range.MinInclusive, index: i})
	}
	return m, nil
}

func checkComplete(ordered []RangeWithInfo, collectionUniqueID string) error {
	if len(ordered) == 0 {
		return dberr.WrapStatus(ErrIncompleteRoutingMap, dberr.StatusInternalServerError, dberr.SubStatusUnknown,
			"collection %s has no ranges", collectionUniqueID)
	}
	first, last := ordered[0].Range, ordered[len(ordered)-1].Range
	if first.MinInclusive != pkey.MinimumInclusiveEffectivePartitionKey || last.MaxExclusive != pkey.MaximumExclusiveEffectivePartitionKey {
		return dberr.WrapStatus(ErrIncompleteRoutingMap, dberr.StatusInternalServerError, dberr.SubStatusUnknown,
			"collection %s spans [%s, %s)", collectionUniqueID, first.MinInclusive, last.MaxExclusive)
	}

	for _, r := range ordered {
		if r.Range.MaxExclusive <= r.Range.MinInclusive {
			return dberr.WrapStatus(ErrIncompleteRoutingMap, dberr.StatusInternalServerError, dberr.SubStatusUnknown,
				"collection %s, range %s is empty", collectionUniqueID, r.Range.ID)
		}
	}

	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1].Range, ordered[i].Range
		switch {
		case prev.MaxExclusive > cur.MinInclusive, prev.MinInclusive == cur.MinInclusive:
			return dberr.WrapStatus(ErrOverlappingRanges, dberr.StatusInternalServerError, dberr.SubStatusUnknown,
				"collection %s, ranges %s and %s", collectionUniqueID, prev.ID, cur.ID)
		case prev.MaxExclusive < cur.MinInclusive:
			return dberr.WrapStatus(ErrIncompleteRoutingMap, dberr.StatusInternalServerError, dberr.SubStatusUnknown,
				"collection %s, gap between %s and %s", collectionUniqueID, prev.ID, cur.ID)
		}
	}
	return nil
}

// CollectionUniqueID returns the resource id of the collection
func (m *CollectionRoutingMap) CollectionUniqueID() string { return m.collectionUniqueID }

// ChangeFeedETag returns the continuation for the next incremental read
func (m *CollectionRoutingMap) ChangeFeedETag() string { return m.changeFeedETag }

// Len returns the number of ranges
func (m *CollectionRoutingMap) Len() int { return len(m.ordered) }

// OrderedRanges returns all ranges sorted by their minimum
func (m *CollectionRoutingMap) OrderedRanges() []PartitionKeyRange {
	out := make([]PartitionKeyRange, len(m.ordered))
	for i, r := range m.ordered {
		out[i] = r.Range
	}
	return out
}

// RangeByEffectivePartitionKey returns the range that owns epk
func (m *CollectionRoutingMap) RangeByEffectivePartitionKey(epk string) (PartitionKeyRange, bool) {
	if epk == pkey.MinimumInclusiveEffectivePartitionKey {
		return m.ordered[0].Range, true
	}
	if epk >= pkey.MaximumExclusiveEffectivePartitionKey {
		return PartitionKeyRange{}, false
	}

	idx := m.floor(epk)
	if idx < 0 {
		return PartitionKeyRange{}, false
	}
	return m.ordered[idx].Range, true
}

// RangeByID returns the range with the given id
func (m *CollectionRoutingMap) RangeByID(id string) (PartitionKeyRange, bool) {
	idx, ok := m.byID[id]
	if !ok {
		return PartitionKeyRange{}, false
	}
	return m.ordered[idx].Range, true
}

// InfoByID returns the payload stored for the range with the given id
func (m *CollectionRoutingMap) InfoByID(id string) (any, bool) {
	idx, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return m.ordered[idx].Info, true
}

// IsGone reports whether id names a range that was split and replaced
func (m *CollectionRoutingMap) IsGone(id string) bool {
	_, ok := m.gone[id]
	return ok
}

// OverlappingRanges returns the ranges sharing at least one key with r
func (m *CollectionRoutingMap) OverlappingRanges(r Range[string]) []PartitionKeyRange {
	return m.OverlappingRangesFor([]Range[string]{r})
}

// OverlappingRangesFor returns the distinct ranges overlapping any query
// range, sorted by their minimum
func (m *CollectionRoutingMap) OverlappingRangesFor(queries []Range[string]) []PartitionKeyRange {
	hit := make(map[int]struct{})
	for _, q := range queries {
		if q.IsEmpty() {
			continue
		}
		start := m.floor(q.Min)
		if start < 0 {
			start = 0
		}
		for i := start; i < len(m.ordered); i++ {
			r := m.ordered[i].Range
			if r.MinInclusive > q.Max {
				break
			}
			if CheckOverlapping(r.ToRange(), q) {
				hit[i] = struct{}{}
			}
		}
	}

	indices := make([]int, 0, len(hit))
	for i := range hit {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]PartitionKeyRange, len(indices))
	for i, idx := range indices {
		out[i] = m.ordered[idx].Range
	}
	return out
}

// TryCombine applies an incremental set of ranges (for example the children
// of a split range) to the map. Ranges named as parents of the new ranges are
// dropped. The result is a new map; m stays unchanged.
func (m *CollectionRoutingMap) TryCombine(ranges []RangeWithInfo, etag string) (*CollectionRoutingMap, error) {
	gone := make(map[string]struct{}, len(m.gone))
	for id := range m.gone {
		gone[id] = struct{}{}
	}
	for _, r := range ranges {
		for _, parent := range r.Range.Parents {
			gone[parent] = struct{}{}
		}
	}

	byID := make(map[string]RangeWithInfo, len(m.ordered)+len(ranges))
	for _, r := range m.ordered {
		if _, ok := gone[r.Range.ID]; !ok {
			byID[r.Range.ID] = r
		}
	}
	for _, r := range ranges {
		if _, ok := gone[r.Range.ID]; !ok {
			byID[r.Range.ID] = r
		}
	}

	combined := make([]RangeWithInfo, 0, len(byID))
	for _, r := range byID {
		combined = append(combined, r)
	}
	return build(combined, m.collectionUniqueID, etag, gone)
}

// floor returns the index of the last range whose minimum is <= epk, -1 if none
func (m *CollectionRoutingMap) floor(epk string) int {
	idx := -1
	m.index.DescendLessOrEqual(rangeItem{min: epk}, func(i btree.Item) bool {
		idx = i.(rangeItem).index
		return false
	})
	return idx
}
