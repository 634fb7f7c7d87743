// Package node converts between go values and ipld data model nodes.
package node

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// Build returns a new node holding the given go value.
//
// Supported values are the ones produced by encoding/json: maps with string keys,
// slices, strings, booleans, numbers, json.Number and nil.
func Build(value any) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := assignValue(value, nb); err != nil {
		return nil, err
	}
	return nb.Build(), nil
}

func assignValue(value any, na datamodel.NodeAssembler) error {
	switch v := value.(type) {
	case nil:
		return na.AssignNull()
	case bool:
		return na.AssignBool(v)
	case string:
		return na.AssignString(v)
	case []byte:
		return na.AssignBytes(v)
	case int:
		return na.AssignInt(int64(v))
	case int64:
		return na.AssignInt(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return na.AssignInt(int64(v))
		}
		return na.AssignFloat(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return na.AssignInt(i)
		}
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("invalid number %s", v)
		}
		return na.AssignFloat(f)
	case []any:
		return assignList(v, na)
	case []string:
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		return assignList(list, na)
	case map[string]any:
		return assignMap(v, na)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return assignMap(m, na)
	case datamodel.Node:
		return na.AssignNode(v)
	default:
		return fmt.Errorf("cannot build node from %T", value)
	}
}

func assignList(value []any, na datamodel.NodeAssembler) error {
	la, err := na.BeginList(int64(len(value)))
	if err != nil {
		return err
	}
	for _, v := range value {
		if err := assignValue(v, la.AssembleValue()); err != nil {
			return err
		}
	}
	return la.Finish()
}

func assignMap(value map[string]any, na datamodel.NodeAssembler) error {
	ma, err := na.BeginMap(int64(len(value)))
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ea, err := ma.AssembleEntry(k)
		if err != nil {
			return err
		}
		if err := assignValue(value[k], ea); err != nil {
			return err
		}
	}
	return ma.Finish()
}
