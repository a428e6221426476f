package routing

// PartitionKeyRange is one physical partition of a collection. It owns the
// effective partition keys in [MinInclusive, MaxExclusive).
type PartitionKeyRange struct {
	ID           string   `json:"id"`
	ResourceID   string   `json:"_rid,omitempty"`
	MinInclusive string   `json:"minInclusive"`
	MaxExclusive string   `json:"maxExclusive"`
	Parents      []string `json:"parents,omitempty"`
	Status       string   `json:"status,omitempty"`
}

// ToRange returns the interval owned by the partition
func (p PartitionKeyRange) ToRange() Range[string] {
	return Range[string]{Min: p.MinInclusive, Max: p.MaxExclusive, IsMinInclusive: true}
}

// Identifies reports whether both ranges have the same id and bounds
func (p PartitionKeyRange) Identifies(o PartitionKeyRange) bool {
	return p.ID == o.ID && p.MinInclusive == o.MinInclusive && p.MaxExclusive == o.MaxExclusive
}

// RangeWithInfo pairs a range with the payload a routing map stores for it,
// for example the identity of the serving replica set
type RangeWithInfo struct {
	Range PartitionKeyRange
	Info  any
}
