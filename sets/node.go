// Package sets implements boolean and number sets: rule trees deciding who may act
// and with how much weight.
package sets

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nasdf/quorum/fault"
)

// Boolean operators.
const (
	And = "and"
	Or  = "or"
	Not = "not"
)

// Number operators.
const (
	Sum  = "sum"
	Max  = "max"
	Sqrt = "sqrt"
)

// Node is either an *Operation or a *Unit.
type Node interface {
	isNode()
}

// Operation combines the values of its operands.
type Operation struct {
	Operator string
	Operands []Node
	// Name is a display label ignored by evaluation.
	Name string
}

// Unit invokes a registered function with positional arguments.
type Unit struct {
	Function  string
	Arguments []any
	// Name is a display label ignored by evaluation.
	Name string
}

func (*Operation) isNode() {}
func (*Unit) isNode()      {}

// Parse builds a node from a decoded JSON value.
func Parse(value any) (Node, error) {
	return parse(value, "")
}

func parse(value any, path string) (Node, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fault.New(fault.SchemaError, path, "expected object got %T", value)
	}
	name, _ := obj["name"].(string)

	if fn, ok := obj["function"]; ok {
		function, ok := fn.(string)
		if !ok || function == "" {
			return nil, fault.New(fault.SchemaError, join(path, "function"), "expected function name")
		}
		var args []any
		switch v := obj["arguments"].(type) {
		case nil:
		case []any:
			args = v
		default:
			return nil, fault.New(fault.SchemaError, join(path, "arguments"), "expected list got %T", v)
		}
		return &Unit{Function: function, Arguments: args, Name: name}, nil
	}

	op, ok := obj["operation"]
	if !ok {
		op, ok = obj["operator"]
	}
	if !ok {
		return nil, fault.New(fault.SchemaError, path, "expected function or operation")
	}
	operator, ok := op.(string)
	if !ok {
		return nil, fault.New(fault.SchemaError, join(path, "operation"), "expected string got %T", op)
	}
	list, ok := obj["operands"].([]any)
	if !ok || len(list) == 0 {
		return nil, fault.New(fault.SchemaError, join(path, "operands"), "expected non-empty list")
	}
	operands := make([]Node, len(list))
	for i, item := range list {
		n, err := parse(item, fmt.Sprintf("%s[%d]", join(path, "operands"), i))
		if err != nil {
			return nil, err
		}
		operands[i] = n
	}
	return &Operation{Operator: operator, Operands: operands, Name: name}, nil
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// Unmarshal parses a node from its JSON encoding.
func Unmarshal(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fault.Wrap(fault.SchemaError, "", err)
	}
	return Parse(value)
}

func (o *Operation) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"operation": o.Operator,
		"operands":  o.Operands,
	}
	if o.Name != "" {
		out["name"] = o.Name
	}
	return json.Marshal(out)
}

func (u *Unit) MarshalJSON() ([]byte, error) {
	args := u.Arguments
	if args == nil {
		args = []any{}
	}
	out := map[string]any{
		"function":  u.Function,
		"arguments": args,
	}
	if u.Name != "" {
		out["name"] = u.Name
	}
	return json.Marshal(out)
}
