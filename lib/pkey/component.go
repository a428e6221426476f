package pkey

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ComponentType is the type byte of a component. Its numeric value is the
// primary ordering key.
type ComponentType byte

const (
	TypeUndefined ComponentType = 0x00
	TypeNull      ComponentType = 0x01
	TypeFalse     ComponentType = 0x02
	TypeTrue      ComponentType = 0x03
	TypeMinNumber ComponentType = 0x04
	TypeNumber    ComponentType = 0x05
	TypeMaxNumber ComponentType = 0x06
	TypeMinString ComponentType = 0x07
	TypeString    ComponentType = 0x08
	TypeMaxString ComponentType = 0x09
	TypeInfinity  ComponentType = 0xFF
)

// String returns the name of the type as used in the JSON codec
func (t ComponentType) String() string {
	switch t {
	case TypeUndefined:
		return "Undefined"
	case TypeNull:
		return "Null"
	case TypeFalse:
		return "False"
	case TypeTrue:
		return "True"
	case TypeMinNumber:
		return "MinNumber"
	case TypeNumber:
		return "Number"
	case TypeMaxNumber:
		return "MaxNumber"
	case TypeMinString:
		return "MinString"
	case TypeString:
		return "String"
	case TypeMaxString:
		return "MaxString"
	case TypeInfinity:
		return "Infinity"
	default:
		return fmt.Sprintf("ComponentType(%d)", byte(t))
	}
}

// MaxStringChars is the number of characters of a string component that take
// part in hashing
const MaxStringChars = 100

// maxStringBytesToAppend is the number of string bytes written by the binary encoding
const maxStringBytesToAppend = 100

// Component is a single, immutable partition key component
type Component struct {
	typ ComponentType
	num float64
	str string
}

// Predefined components without payload
var (
	UndefinedComponent = Component{typ: TypeUndefined}
	NullComponent      = Component{typ: TypeNull}
	FalseComponent     = Component{typ: TypeFalse}
	TrueComponent      = Component{typ: TypeTrue}
	MinNumberComponent = Component{typ: TypeMinNumber}
	MaxNumberComponent = Component{typ: TypeMaxNumber}
	MinStringComponent = Component{typ: TypeMinString}
	MaxStringComponent = Component{typ: TypeMaxString}
	InfinityComponent  = Component{typ: TypeInfinity}
)

// Number creates a number component
func Number(v float64) Component {
	return Component{typ: TypeNumber, num: v}
}

// String creates a string component
func String(s string) Component {
	return Component{typ: TypeString, str: s}
}

// Bool creates a boolean component
func Bool(b bool) Component {
	if b {
		return TrueComponent
	}
	return FalseComponent
}

// Type returns the type of the component
func (c Component) Type() ComponentType { return c.typ }

// NumberValue returns the payload of a number component
func (c Component) NumberValue() float64 { return c.num }

// StringValue returns the payload of a string component
func (c Component) StringValue() string { return c.str }

// Compare orders two components by type first and by value second
func (c Component) Compare(o Component) int {
	if c.typ != o.typ {
		if c.typ < o.typ {
			return -1
		}
		return 1
	}
	switch c.typ {
	case TypeNumber:
		switch {
		case c.num < o.num:
			return -1
		case c.num > o.num:
			return 1
		default:
			return 0
		}
	case TypeString:
		return strings.Compare(c.str, o.str)
	default:
		return 0
	}
}

// Truncate returns the component as it takes part in hashing: strings are cut
// to MaxStringChars characters, everything else is returned unchanged.
func (c Component) Truncate() Component {
	if c.typ != TypeString || utf8.RuneCountInString(c.str) <= MaxStringChars {
		return c
	}
	n := 0
	for i := range c.str {
		if n == MaxStringChars {
			return String(c.str[:i])
		}
		n++
	}
	return c
}

func (c Component) String() string {
	switch c.typ {
	case TypeNumber:
		return fmt.Sprintf("%v", c.num)
	case TypeString:
		return fmt.Sprintf("%q", c.str)
	default:
		return c.typ.String()
	}
}
