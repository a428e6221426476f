package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeIsEmpty(t *testing.T) {
	assert.True(t, NewRange("a", "a", true, false).IsEmpty())
	assert.True(t, NewRange("a", "a", false, false).IsEmpty())
	assert.False(t, PointRange("a").IsEmpty())
	assert.False(t, NewRange("a", "b", true, false).IsEmpty())
	assert.True(t, EmptyRange().IsEmpty())
	assert.False(t, FullRange().IsEmpty())
}

func TestRangeContains(t *testing.T) {
	r := NewRange("0012", "0015", true, false)
	assert.True(t, r.Contains("0012"))
	assert.True(t, r.Contains("0014FF"))
	assert.False(t, r.Contains("0015"))
	assert.False(t, r.Contains("0011"))

	assert.True(t, PointRange("0015").Contains("0015"))
	assert.True(t, FullRange().Contains(""))
	assert.False(t, FullRange().Contains("FF"))
}

func TestCheckOverlapping(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Range[string]
		overlap bool
	}{
		{"touching exclusive", NewRange("0012", "0015", true, false), NewRange("0015", "0020", true, false), false},
		{"touching inclusive", NewRange("0012", "0015", true, true), NewRange("0015", "0020", true, false), true},
		{"touching min exclusive", NewRange("0012", "0015", true, true), NewRange("0015", "0020", false, false), false},
		{"nested", NewRange("0010", "0030", true, false), NewRange("0015", "0020", true, false), true},
		{"disjoint", NewRange("0010", "0011", true, false), NewRange("0015", "0020", true, false), false},
		{"point in range", PointRange("0016"), NewRange("0015", "0020", true, false), true},
		{"empty", NewRange("0015", "0015", true, false), NewRange("0010", "0020", true, false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlap, CheckOverlapping(tt.a, tt.b))
			assert.Equal(t, tt.overlap, CheckOverlapping(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestComparators(t *testing.T) {
	incl := NewRange("a", "b", true, true)
	excl := NewRange("a", "b", false, false)

	assert.Equal(t, -1, MinComparator(incl, excl))
	assert.Equal(t, 1, MinComparator(excl, incl))
	assert.Equal(t, 1, MaxComparator(incl, excl))
	assert.Equal(t, -1, MaxComparator(excl, incl))
	assert.Equal(t, 0, MaxComparator(incl, incl))
	assert.Equal(t, -1, MinComparator(NewRange("a", "z", true, false), NewRange("b", "c", true, false)))
}

func TestIsSortedAndNonOverlapping(t *testing.T) {
	assert.True(t, isSortedAndNonOverlapping([]Range[string]{
		NewRange("A", "B", true, false),
		NewRange("B", "C", true, false),
	}))
	assert.False(t, isSortedAndNonOverlapping([]Range[string]{
		NewRange("A", "B", true, true),
		NewRange("B", "C", true, false),
	}))
	assert.False(t, isSortedAndNonOverlapping([]Range[string]{
		NewRange("B", "C", true, false),
		NewRange("A", "B", true, false),
	}))
}
