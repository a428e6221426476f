package routing

import (
	"cmp"
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/pkey"
)

// Range is an interval over an ordered type. Ranges are values.
type Range[T cmp.Ordered] struct {
	Min            T    `json:"min"`
	Max            T    `json:"max"`
	IsMinInclusive bool `json:"isMinInclusive"`
	IsMaxInclusive bool `json:"isMaxInclusive"`
}

// NewRange creates a range
func NewRange[T cmp.Ordered](min, max T, minInclusive, maxInclusive bool) Range[T] {
	return Range[T]{Min: min, Max: max, IsMinInclusive: minInclusive, IsMaxInclusive: maxInclusive}
}

// PointRange creates the range [v, v]
func PointRange[T cmp.Ordered](v T) Range[T] {
	return Range[T]{Min: v, Max: v, IsMinInclusive: true, IsMaxInclusive: true}
}

// FullRange is the whole effective partition key space
func FullRange() Range[string] {
	return Range[string]{
		Min:            pkey.MinimumInclusiveEffectivePartitionKey,
		Max:            pkey.MaximumExclusiveEffectivePartitionKey,
		IsMinInclusive: true,
	}
}

// EmptyRange is the range ["", "") used for queries that did not start yet
func EmptyRange() Range[string] {
	return Range[string]{
		Min:            pkey.MinimumInclusiveEffectivePartitionKey,
		Max:            pkey.MinimumInclusiveEffectivePartitionKey,
		IsMinInclusive: true,
	}
}

// IsEmpty reports whether the range contains no value
func (r Range[T]) IsEmpty() bool {
	return r.Min == r.Max && !(r.IsMinInclusive && r.IsMaxInclusive)
}

// IsSingleValue reports whether r is a point range
func (r Range[T]) IsSingleValue() bool {
	return r.Min == r.Max && r.IsMinInclusive && r.IsMaxInclusive
}

// Contains reports whether v lies within r
func (r Range[T]) Contains(v T) bool {
	minToValue := cmp.Compare(r.Min, v)
	maxToValue := cmp.Compare(r.Max, v)

	aboveMin := minToValue < 0 || (r.IsMinInclusive && minToValue == 0)
	belowMax := maxToValue > 0 || (r.IsMaxInclusive && maxToValue == 0)
	return aboveMin && belowMax
}

func (r Range[T]) String() string {
	open, closing := "(", ")"
	if r.IsMinInclusive {
		open = "["
	}
	if r.IsMaxInclusive {
		closing = "]"
	}
	return fmt.Sprintf("%s%v,%v%s", open, r.Min, r.Max, closing)
}

// CheckOverlapping reports whether a and b share at least one value. Ranges
// touching at a boundary overlap only if both sides include it.
func CheckOverlapping[T cmp.Ordered](a, b Range[T]) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}

	cmp1 := cmp.Compare(a.Min, b.Max)
	cmp2 := cmp.Compare(b.Min, a.Max)
	if cmp1 > 0 || cmp2 > 0 {
		return false
	}
	if cmp1 == 0 && !(a.IsMinInclusive && b.IsMaxInclusive) {
		return false
	}
	if cmp2 == 0 && !(b.IsMinInclusive && a.IsMaxInclusive) {
		return false
	}
	return true
}

// MinComparator orders ranges by their minimum; an inclusive minimum is smaller
func MinComparator[T cmp.Ordered](a, b Range[T]) int {
	if c := cmp.Compare(a.Min, b.Min); c != 0 || a.IsMinInclusive == b.IsMinInclusive {
		return c
	}
	if a.IsMinInclusive {
		return -1
	}
	return 1
}

// MaxComparator orders ranges by their maximum; an inclusive maximum is larger
func MaxComparator[T cmp.Ordered](a, b Range[T]) int {
	if c := cmp.Compare(a.Max, b.Max); c != 0 || a.IsMaxInclusive == b.IsMaxInclusive {
		return c
	}
	if a.IsMaxInclusive {
		return 1
	}
	return -1
}

// isSortedAndNonOverlapping checks the precondition of OverlappingRangesForSorted
func isSortedAndNonOverlapping[T cmp.Ordered](ranges []Range[T]) bool {
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		c := cmp.Compare(prev.Max, cur.Min)
		if c > 0 {
			return false
		}
		if c == 0 && prev.IsMaxInclusive && cur.IsMinInclusive {
			return false
		}
	}
	return true
}
