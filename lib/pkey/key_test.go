package pkey

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentOrdering(t *testing.T) {
	ordered := []Component{
		UndefinedComponent,
		NullComponent,
		FalseComponent,
		TrueComponent,
		MinNumberComponent,
		Number(-10),
		Number(3.5),
		MaxNumberComponent,
		MinStringComponent,
		String(""),
		String("a"),
		String("b"),
		MaxStringComponent,
		InfinityComponent,
	}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Equal(t, -1, ordered[i].Compare(ordered[i+1]), "%s < %s", ordered[i], ordered[i+1])
		assert.Equal(t, 1, ordered[i+1].Compare(ordered[i]))
		assert.Equal(t, 0, ordered[i].Compare(ordered[i]))
	}
}

func TestKeyCompare(t *testing.T) {
	a := NewKey(String("a"))
	ab := NewKey(String("a"), Number(1))
	b := NewKey(String("b"))

	assert.Equal(t, -1, a.Compare(ab))
	assert.Equal(t, -1, ab.Compare(b))
	assert.Equal(t, -1, Empty.Compare(a))
	assert.Equal(t, 1, Infinity.Compare(b))
	assert.True(t, ab.Equal(NewKey(String("a"), Number(1))))
}

func TestFromValues(t *testing.T) {
	k, err := FromValues([]any{"x", 2, true, nil, Undefined{}}, true)
	require.NoError(t, err)
	assert.Equal(t, NewKey(String("x"), Number(2), TrueComponent, NullComponent, UndefinedComponent), k)

	_, err = FromValues([]any{struct{}{}}, true)
	assert.True(t, dberr.Is(err, dberr.ErrInvalidPartitionKey))

	k, err = FromValues([]any{struct{}{}}, false)
	require.NoError(t, err)
	assert.Equal(t, NewKey(UndefinedComponent), k)
}

func TestBinaryEncoding(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		hex  string
	}{
		{"empty", Empty, ""},
		{"string", NewKey(String("a")), "086200"},
		{"zero", NewKey(Number(0)), "058000"},
		{"one", NewKey(Number(1)), "05BFF0"},
		{"bool and null", NewKey(TrueComponent, NullComponent), "0301"},
		{"infinity", Infinity, "FF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hex, tt.key.ToHexEncodedBinaryString())
		})
	}
}

func TestBinaryEncodingPreservesNumberOrder(t *testing.T) {
	values := []float64{-1e9, -3, -1, -0.5, 0, 0.25, 1, 2, 1e12}
	for i := 0; i < len(values)-1; i++ {
		lo := NewKey(Number(values[i])).ToHexEncodedBinaryString()
		hi := NewKey(Number(values[i+1])).ToHexEncodedBinaryString()
		assert.Less(t, lo, hi, "%v < %v", values[i], values[i+1])
	}
}

func TestBinaryEncodingLongStrings(t *testing.T) {
	short := NewKey(String(strings.Repeat("x", 100))).EncodeBinary()
	long := NewKey(String(strings.Repeat("x", 150))).EncodeBinary()

	// type byte, 100 bytes, terminator
	assert.Len(t, short, 102)
	assert.Equal(t, byte(0x00), short[101])
	// type byte, 101 bytes, no terminator
	assert.Len(t, long, 102)
	assert.Equal(t, byte('x'+1), long[101])
}

func TestEffectivePartitionKeyBounds(t *testing.T) {
	def := &Definition{Paths: []string{"/id"}}

	epk, err := EffectivePartitionKeyString(Empty, def)
	require.NoError(t, err)
	assert.Equal(t, MinimumInclusiveEffectivePartitionKey, epk)

	epk, err = EffectivePartitionKeyString(Infinity, nil)
	require.NoError(t, err)
	assert.Equal(t, MaximumExclusiveEffectivePartitionKey, epk)
}

func TestEffectivePartitionKeyHash(t *testing.T) {
	def := &Definition{Paths: []string{"/id"}}
	key := NewKey(String("customer-42"))

	epk, err := EffectivePartitionKeyString(key, def)
	require.NoError(t, err)
	again, err := EffectivePartitionKeyString(key, def)
	require.NoError(t, err)

	assert.Equal(t, epk, again)
	assert.True(t, strings.HasPrefix(epk, "05"), "hash component comes first")
	assert.True(t, strings.HasSuffix(epk, key.ToHexEncodedBinaryString()))
	assert.Less(t, epk, MaximumExclusiveEffectivePartitionKey)

	other, err := EffectivePartitionKeyString(NewKey(String("customer-43")), def)
	require.NoError(t, err)
	assert.NotEqual(t, epk, other)
}

func TestEffectivePartitionKeyHashTruncatesStrings(t *testing.T) {
	def := &Definition{Paths: []string{"/id"}}
	prefix := strings.Repeat("ü", MaxStringChars)

	a, err := EffectivePartitionKeyString(NewKey(String(prefix+"tail-a")), def)
	require.NoError(t, err)
	b, err := EffectivePartitionKeyString(NewKey(String(prefix+"tail-b")), def)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEffectivePartitionKeyRange(t *testing.T) {
	def := &Definition{Paths: []string{"/id"}, Kind: KindRange}
	key := NewKey(String("a"))

	epk, err := EffectivePartitionKeyString(key, def)
	require.NoError(t, err)
	assert.Equal(t, "086200", epk)
}

func TestEffectivePartitionKeyErrors(t *testing.T) {
	_, err := EffectivePartitionKeyString(NewKey(String("a")), nil)
	assert.True(t, dberr.Is(err, dberr.ErrMissingPartitionKeyDefinition))
	assert.Equal(t, dberr.KindClient, dberr.KindOf(err))

	_, err = EffectivePartitionKeyString(NewKey(String("a"), String("b")), &Definition{Paths: []string{"/id"}})
	assert.True(t, dberr.Is(err, dberr.ErrTooManyPartitionKeyComponents))
}
