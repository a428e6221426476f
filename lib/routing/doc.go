// Package routing maps effective partition keys to partition key ranges.
//
// The building blocks are:
//
//   - Range: a (half) open interval over an ordered type, mostly effective
//     partition key strings. The whole key space is ["", "FF").
//   - PartitionKeyRange: one physical partition as reported by the metadata
//     service, with the ids of the ranges it was split from.
//   - CollectionRoutingMap: an immutable, validated snapshot of all ranges of
//     a collection. Ranges are kept in a google/btree index keyed by their
//     minimum, so point and overlap lookups are logarithmic.
//   - RangeCache: the per collection AsyncCache of routing maps. A refresh
//     reads the incremental change feed of ranges and combines it with the
//     previous map (TryCombine), falling back to a full read.
//   - OverlappingRangesForSorted: resolves a sorted list of query ranges with
//     as few routing map lookups as possible.
//   - The continuation helpers: cross partition queries carry a composite
//     continuation token {token, range}, where range is the partition range
//     the query had reached. Before resuming, the range is re-resolved against
//     the current routing map; a mismatch means the partition was split.
package routing
