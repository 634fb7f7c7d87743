package node

import (
	"fmt"

	"github.com/nasdf/quorum/fault"

	"github.com/ipld/go-ipld-prime/datamodel"
)

// Value returns the JSON shaped go value held by n.
//
// Maps become map[string]any, lists []any, integers int64 and floats float64.
// Links and bytes have no JSON form and are rejected with the path where they occur.
func Value(n datamodel.Node) (any, error) {
	return value(n, "")
}

// Document returns the fields of a stored document.
func Document(n datamodel.Node) (map[string]any, error) {
	if n.Kind() != datamodel.Kind_Map {
		return nil, fault.New(fault.SchemaError, "", "document must be an object got %s", n.Kind())
	}
	return fields(n, "")
}

func value(n datamodel.Node, path string) (any, error) {
	switch n.Kind() {
	case datamodel.Kind_Null:
		return nil, nil
	case datamodel.Kind_Bool:
		return n.AsBool()
	case datamodel.Kind_Int:
		return n.AsInt()
	case datamodel.Kind_Float:
		return n.AsFloat()
	case datamodel.Kind_String:
		return n.AsString()
	case datamodel.Kind_List:
		return items(n, path)
	case datamodel.Kind_Map:
		return fields(n, path)
	default:
		return nil, fault.New(fault.SchemaError, path, "%s is not a document value", n.Kind())
	}
}

func fields(n datamodel.Node, path string) (map[string]any, error) {
	out := make(map[string]any, n.Length())
	for iter := n.MapIterator(); !iter.Done(); {
		k, v, err := iter.Next()
		if err != nil {
			return nil, fault.Wrap(fault.SchemaError, path, err)
		}
		key, err := k.AsString()
		if err != nil {
			return nil, fault.Wrap(fault.SchemaError, path, err)
		}
		field := key
		if path != "" {
			field = path + "." + key
		}
		out[key], err = value(v, field)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func items(n datamodel.Node, path string) ([]any, error) {
	out := make([]any, 0, n.Length())
	for iter := n.ListIterator(); !iter.Done(); {
		i, v, err := iter.Next()
		if err != nil {
			return nil, fault.Wrap(fault.SchemaError, path, err)
		}
		item, err := value(v, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
