package pkey

import (
	"errors"
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/buger/jsonparser"
)

// ExtractPartitionKeyValue reads the partition key of a raw JSON document.
// A missing leaf and object or array leaves become Undefined, null becomes Null.
// Without a definition, or with one that has no paths, the result is Empty.
func ExtractPartitionKeyValue(doc []byte, def *Definition) (Key, error) {
	if def == nil || len(def.Paths) == 0 {
		return Empty, nil
	}

	paths, err := def.ParsedPaths()
	if err != nil {
		return Empty, err
	}

	components := make([]Component, len(paths))
	for i, segments := range paths {
		c, err := extractComponent(doc, segments)
		if err != nil {
			return Empty, err
		}
		components[i] = c
	}
	return Key{components: components}, nil
}

func extractComponent(doc []byte, segments []string) (Component, error) {
	value, dataType, err := lookup(doc, segments)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return UndefinedComponent, nil
	}
	if err != nil {
		return Component{}, dberr.Client(dberr.ErrInvalidArgument, "document is not valid JSON: %v", err)
	}

	switch dataType {
	case jsonparser.NotExist, jsonparser.Object, jsonparser.Array:
		return UndefinedComponent, nil
	case jsonparser.Null:
		return NullComponent, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return Component{}, dberr.Client(dberr.ErrInvalidArgument, "invalid boolean %s", string(value))
		}
		return Bool(b), nil
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		if err != nil {
			return Component{}, dberr.Client(dberr.ErrInvalidArgument, "invalid number %s", string(value))
		}
		return Number(f), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return Component{}, dberr.Client(dberr.ErrInvalidArgument, "invalid string %s", string(value))
		}
		return String(s), nil
	default:
		return UndefinedComponent, nil
	}
}

// lookup walks the properties named by segments. jsonparser reads a key
// starting with [ as an array index, so those properties are matched by name.
func lookup(doc []byte, segments []string) ([]byte, jsonparser.ValueType, error) {
	plain := true
	for _, seg := range segments {
		if strings.HasPrefix(seg, "[") {
			plain = false
			break
		}
	}
	if plain {
		value, dataType, _, err := jsonparser.Get(doc, segments...)
		return value, dataType, err
	}

	value, dataType := doc, jsonparser.Object
	for _, seg := range segments {
		if dataType != jsonparser.Object {
			return nil, jsonparser.NotExist, jsonparser.KeyPathNotFoundError
		}
		var err error
		if strings.HasPrefix(seg, "[") {
			value, dataType, err = property(value, seg)
		} else {
			value, dataType, _, err = jsonparser.Get(value, seg)
		}
		if err != nil {
			return nil, jsonparser.NotExist, err
		}
	}
	return value, dataType, nil
}

// property returns the first property of obj called name
func property(obj []byte, name string) ([]byte, jsonparser.ValueType, error) {
	var value []byte
	dataType := jsonparser.NotExist
	err := jsonparser.ObjectEach(obj, func(key, v []byte, t jsonparser.ValueType, _ int) error {
		if dataType == jsonparser.NotExist && string(key) == name {
			value, dataType = v, t
		}
		return nil
	})
	if err != nil {
		return nil, jsonparser.NotExist, err
	}
	if dataType == jsonparser.NotExist {
		return nil, jsonparser.NotExist, jsonparser.KeyPathNotFoundError
	}
	return value, dataType, nil
}
