package pkey

import (
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
)

// Key is an ordered sequence of components. Keys are values and never change
// after construction.
type Key struct {
	components []Component
}

var (
	// Empty is the key of unpartitioned collections
	Empty = Key{}
	// Infinity is the exclusive upper bound of the key space
	Infinity = Key{components: []Component{InfinityComponent}}
)

// Undefined marks a missing value in FromValues
type Undefined struct{}

// NewKey creates a key from components
func NewKey(components ...Component) Key {
	if len(components) == 0 {
		return Empty
	}
	cp := make([]Component, len(components))
	copy(cp, components)
	return Key{components: cp}
}

// FromValues converts plain Go values to a key. Supported are nil, bool, all
// integer and float types, string and Undefined. With strict set, other types
// are rejected; otherwise they become Undefined.
func FromValues(values []any, strict bool) (Key, error) {
	if len(values) == 0 {
		return Empty, nil
	}
	components := make([]Component, 0, len(values))
	for _, v := range values {
		c, ok := componentOf(v)
		if !ok {
			if strict {
				return Empty, dberr.Client(dberr.ErrInvalidPartitionKey, "unsupported partition key value of type %T", v)
			}
			c = UndefinedComponent
		}
		components = append(components, c)
	}
	return Key{components: components}, nil
}

func componentOf(v any) (Component, bool) {
	switch x := v.(type) {
	case nil:
		return NullComponent, true
	case Undefined:
		return UndefinedComponent, true
	case Component:
		return x, true
	case bool:
		return Bool(x), true
	case string:
		return String(x), true
	case float64:
		return Number(x), true
	case float32:
		return Number(float64(x)), true
	case int:
		return Number(float64(x)), true
	case int8:
		return Number(float64(x)), true
	case int16:
		return Number(float64(x)), true
	case int32:
		return Number(float64(x)), true
	case int64:
		return Number(float64(x)), true
	case uint:
		return Number(float64(x)), true
	case uint8:
		return Number(float64(x)), true
	case uint16:
		return Number(float64(x)), true
	case uint32:
		return Number(float64(x)), true
	case uint64:
		return Number(float64(x)), true
	default:
		return Component{}, false
	}
}

// Components returns a copy of the components
func (k Key) Components() []Component {
	cp := make([]Component, len(k.components))
	copy(cp, k.components)
	return cp
}

// Len returns the number of components
func (k Key) Len() int { return len(k.components) }

// IsEmpty reports whether k has no components
func (k Key) IsEmpty() bool { return len(k.components) == 0 }

// IsInfinity reports whether k is the Infinity key
func (k Key) IsInfinity() bool {
	return len(k.components) == 1 && k.components[0].typ == TypeInfinity
}

// Compare orders keys component by component, then by length
func (k Key) Compare(o Key) int {
	for i := 0; i < len(k.components) && i < len(o.components); i++ {
		if c := k.components[i].Compare(o.components[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k.components) < len(o.components):
		return -1
	case len(k.components) > len(o.components):
		return 1
	default:
		return 0
	}
}

// Equal reports whether both keys have equal components
func (k Key) Equal(o Key) bool {
	return k.Compare(o) == 0
}

// String returns the JSON form of the key
func (k Key) String() string {
	b, err := k.MarshalJSON()
	if err != nil {
		parts := make([]string, len(k.components))
		for i, c := range k.components {
			parts[i] = c.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return string(b)
}
