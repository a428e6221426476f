package pkey

import (
	"bytes"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/goccy/go-json"
)

const infinityJSON = `"Infinity"`

// typedComponent is the JSON object form of the Min/Max components
type typedComponent struct {
	Type string `json:"type"`
}

// MarshalJSON encodes the key as a JSON array. Infinity becomes the string
// "Infinity", Empty becomes [].
func (k Key) MarshalJSON() ([]byte, error) {
	if k.IsInfinity() {
		return []byte(infinityJSON), nil
	}
	items := make([]any, len(k.components))
	for i, c := range k.components {
		items[i] = c.jsonValue()
	}
	return json.Marshal(items)
}

func (c Component) jsonValue() any {
	switch c.typ {
	case TypeUndefined:
		return struct{}{}
	case TypeNull:
		return nil
	case TypeFalse:
		return false
	case TypeTrue:
		return true
	case TypeNumber:
		return c.num
	case TypeString:
		return c.str
	default:
		return typedComponent{Type: c.typ.String()}
	}
}

// UnmarshalJSON decodes the output of MarshalJSON
func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == infinityJSON {
		*k = Infinity
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return dberr.Client(dberr.ErrInvalidPartitionKey, "partition key %s is not a JSON array", string(data))
	}
	if len(items) == 0 {
		*k = Empty
		return nil
	}

	components := make([]Component, len(items))
	for i, item := range items {
		c, err := componentFromJSON(item)
		if err != nil {
			return err
		}
		components[i] = c
	}
	*k = Key{components: components}
	return nil
}

func componentFromJSON(raw json.RawMessage) (Component, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Component{}, dberr.Client(dberr.ErrInvalidPartitionKey, "empty partition key component")
	}

	switch raw[0] {
	case 'n':
		return NullComponent, nil
	case 't':
		return TrueComponent, nil
	case 'f':
		return FalseComponent, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Component{}, dberr.Client(dberr.ErrInvalidPartitionKey, "invalid string component %s", string(raw))
		}
		return String(s), nil
	case '{':
		var tc typedComponent
		if err := json.Unmarshal(raw, &tc); err != nil {
			return Component{}, dberr.Client(dberr.ErrInvalidPartitionKey, "invalid component %s", string(raw))
		}
		return typedComponentOf(tc.Type)
	case '[':
		return Component{}, dberr.Client(dberr.ErrInvalidPartitionKey, "nested arrays are not valid components")
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Component{}, dberr.Client(dberr.ErrInvalidPartitionKey, "invalid number component %s", string(raw))
		}
		return Number(f), nil
	}
}

func typedComponentOf(name string) (Component, error) {
	switch name {
	case "":
		return UndefinedComponent, nil
	case "MinNumber":
		return MinNumberComponent, nil
	case "MaxNumber":
		return MaxNumberComponent, nil
	case "MinString":
		return MinStringComponent, nil
	case "MaxString":
		return MaxStringComponent, nil
	case "Infinity":
		return InfinityComponent, nil
	default:
		return Component{}, dberr.Client(dberr.ErrInvalidPartitionKey, "unknown component type %q", name)
	}
}

// FromJSON parses a key from its JSON form, e.g. the value of the partition
// key request header
func FromJSON(s string) (Key, error) {
	var k Key
	if err := k.UnmarshalJSON([]byte(s)); err != nil {
		return Empty, err
	}
	return k, nil
}
