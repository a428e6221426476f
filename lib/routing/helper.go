package routing

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/dberr"
)

// OverlappingRangesForSorted returns the partition key ranges overlapping any
// of the sorted, non overlapping query ranges. Each lookup covers as many
// query ranges as the last returned partition range reaches. Unsorted or
// overlapping query ranges are a caller error.
func OverlappingRangesForSorted(ctx context.Context, provider IRoutingMapProvider, collectionRID string, sorted []Range[string]) ([]PartitionKeyRange, error) {
	if !isSortedAndNonOverlapping(sorted) {
		return nil, dberr.Client(dberr.ErrInvalidArgument, "query ranges %v must be sorted and must not overlap", sorted)
	}

	var targets []PartitionKeyRange
	current := 0
	for current < len(sorted) {
		provided := sorted[current]
		if provided.IsEmpty() {
			current++
			continue
		}

		query := provided
		if len(targets) > 0 {
			left := max(targets[len(targets)-1].MaxExclusive, provided.Min)
			leftInclusive := false
			if left == provided.Min {
				leftInclusive = provided.IsMinInclusive
			}
			query = NewRange(left, provided.Max, leftInclusive, provided.IsMaxInclusive)
		}

		overlapping, err := provider.TryGetOverlappingRanges(ctx, collectionRID, query, false)
		if err != nil {
			return nil, err
		}
		if overlapping == nil {
			return nil, nil
		}
		if len(overlapping) == 0 {
			current++
			continue
		}
		targets = append(targets, overlapping...)

		lastKnown := targets[len(targets)-1].ToRange()
		for current < len(sorted) && MaxComparator(sorted[current], lastKnown) <= 0 {
			current++
		}
	}
	return targets, nil
}
