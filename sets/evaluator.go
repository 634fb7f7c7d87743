package sets

import (
	"context"
	"fmt"
	"math"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/functions"
	"github.com/nasdf/quorum/snapshot"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of sibling operands evaluated at once.
const DefaultConcurrency = 5

var (
	booleanOperators = mapset.NewSet(And, Or, Not)
	numberOperators  = mapset.NewSet(Sum, Max, Sqrt)
)

// Evaluator evaluates boolean and number sets against a DID.
type Evaluator struct {
	registry    *functions.Registry
	concurrency int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConcurrency sets how many sibling operands are evaluated at once.
func WithConcurrency(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEvaluator returns an evaluator dispatching units to the given registry.
func NewEvaluator(registry *functions.Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry:    registry,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the function registry units are dispatched to.
func (e *Evaluator) Registry() *functions.Registry {
	return e.registry
}

// EvaluateBoolean decides whether the DID is in the boolean set.
//
// All operands are evaluated; there is no short-circuit.
func (e *Evaluator) EvaluateBoolean(ctx context.Context, node Node, did string, snapshots snapshot.Map) (bool, error) {
	return e.evalBoolean(ctx, node, did, snapshots)
}

// EvaluateNumber computes the weight of the DID in the number set.
func (e *Evaluator) EvaluateNumber(ctx context.Context, node Node, did string, snapshots snapshot.Map) (float64, error) {
	return e.evalNumber(ctx, node, did, snapshots)
}

// EvaluateBooleanEach evaluates the boolean set for each DID.
func (e *Evaluator) EvaluateBooleanEach(ctx context.Context, node Node, dids []string, snapshots snapshot.Map) (map[string]bool, error) {
	values, err := each(ctx, e, dids, func(ctx context.Context, did string) (bool, error) {
		return e.evalBoolean(ctx, node, did, snapshots)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(dids))
	for i, did := range dids {
		out[did] = values[i]
	}
	return out, nil
}

// EvaluateNumberEach evaluates the number set for each DID.
func (e *Evaluator) EvaluateNumberEach(ctx context.Context, node Node, dids []string, snapshots snapshot.Map) (map[string]float64, error) {
	values, err := each(ctx, e, dids, func(ctx context.Context, did string) (float64, error) {
		return e.evalNumber(ctx, node, did, snapshots)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(dids))
	for i, did := range dids {
		out[did] = values[i]
	}
	return out, nil
}

// CheckBoolean reports whether node is a boolean set whose functions all instantiate.
func (e *Evaluator) CheckBoolean(node Node) error {
	return e.check(node, "boolean", booleanOperators, func(u *Unit) error {
		_, err := e.registry.Boolean(u.Function, u.Arguments)
		return err
	})
}

// CheckNumber reports whether node is a number set whose functions all instantiate.
func (e *Evaluator) CheckNumber(node Node) error {
	return e.check(node, "number", numberOperators, func(u *Unit) error {
		_, err := e.registry.Number(u.Function, u.Arguments)
		return err
	})
}

func (e *Evaluator) check(node Node, kind string, operators mapset.Set[string], unit func(*Unit) error) error {
	switch n := node.(type) {
	case *Unit:
		return unit(n)
	case *Operation:
		if !operators.Contains(n.Operator) {
			return fault.New(fault.UnsupportedOperator, "operation", "%q is not a %s operator", n.Operator, kind)
		}
		if err := checkOperands(n); err != nil {
			return err
		}
		for i, operand := range n.Operands {
			if err := e.check(operand, kind, operators, unit); err != nil {
				return fault.Within(operandPath("", i), err)
			}
		}
		return nil
	default:
		return fault.New(fault.SchemaError, "", "unknown node %T", node)
	}
}

// RequiredCoinTypes returns every chain a unit in the tree reads from.
//
// It performs no network calls so callers can take all snapshots before evaluation.
func (e *Evaluator) RequiredCoinTypes(node Node) (mapset.Set[chain.CoinType], error) {
	out := mapset.NewThreadUnsafeSet[chain.CoinType]()
	if err := e.collectCoinTypes(node, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Evaluator) collectCoinTypes(node Node, path string, out mapset.Set[chain.CoinType]) error {
	switch n := node.(type) {
	case *Unit:
		coinTypes, err := e.registry.RequiredCoinTypes(n.Function, n.Arguments)
		if err != nil {
			return fault.Within(path, err)
		}
		out.Append(coinTypes...)
		return nil
	case *Operation:
		for i, operand := range n.Operands {
			if err := e.collectCoinTypes(operand, operandPath(path, i), out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fault.New(fault.SchemaError, path, "unknown node %T", node)
	}
}

func (e *Evaluator) evalBoolean(ctx context.Context, node Node, did string, snapshots snapshot.Map) (bool, error) {
	switch n := node.(type) {
	case *Unit:
		fn, err := e.registry.Boolean(n.Function, n.Arguments)
		if err != nil {
			return false, err
		}
		return fn.Execute(ctx, did, snapshots)
	case *Operation:
		if !booleanOperators.Contains(n.Operator) {
			return false, fault.New(fault.UnsupportedOperator, "operation", "%q is not a boolean operator", n.Operator)
		}
		if err := checkOperands(n); err != nil {
			return false, err
		}
		values, err := operands(ctx, e, n.Operands, func(ctx context.Context, operand Node) (bool, error) {
			return e.evalBoolean(ctx, operand, did, snapshots)
		})
		if err != nil {
			return false, err
		}
		switch n.Operator {
		case Not:
			return !values[0], nil
		case And:
			result := true
			for _, v := range values {
				result = result && v
			}
			return result, nil
		default:
			result := false
			for _, v := range values {
				result = result || v
			}
			return result, nil
		}
	default:
		return false, fault.New(fault.SchemaError, "", "unknown node %T", node)
	}
}

func (e *Evaluator) evalNumber(ctx context.Context, node Node, did string, snapshots snapshot.Map) (float64, error) {
	switch n := node.(type) {
	case *Unit:
		fn, err := e.registry.Number(n.Function, n.Arguments)
		if err != nil {
			return 0, err
		}
		return fn.Execute(ctx, did, snapshots)
	case *Operation:
		if !numberOperators.Contains(n.Operator) {
			return 0, fault.New(fault.UnsupportedOperator, "operation", "%q is not a number operator", n.Operator)
		}
		if err := checkOperands(n); err != nil {
			return 0, err
		}
		values, err := operands(ctx, e, n.Operands, func(ctx context.Context, operand Node) (float64, error) {
			return e.evalNumber(ctx, operand, did, snapshots)
		})
		if err != nil {
			return 0, err
		}
		switch n.Operator {
		case Sqrt:
			if values[0] < 0 {
				return 0, fault.New(fault.SchemaError, "operands[0]", "square root of negative weight %v", values[0])
			}
			return math.Sqrt(values[0]), nil
		case Max:
			result := values[0]
			for _, v := range values[1:] {
				result = math.Max(result, v)
			}
			return result, nil
		default:
			var result float64
			for _, v := range values {
				result += v
			}
			return result, nil
		}
	default:
		return 0, fault.New(fault.SchemaError, "", "unknown node %T", node)
	}
}

func checkOperands(n *Operation) error {
	switch n.Operator {
	case Not, Sqrt:
		if len(n.Operands) != 1 {
			return fault.New(fault.SchemaError, "operands", "%s expects exactly one operand got %d", n.Operator, len(n.Operands))
		}
	default:
		if len(n.Operands) == 0 {
			return fault.New(fault.SchemaError, "operands", "%s expects at least one operand", n.Operator)
		}
	}
	return nil
}

func operandPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", join(path, "operands"), i)
}

// operands evaluates every operand with at most e.concurrency running at once and
// returns the results in operand order.
func operands[T any](ctx context.Context, e *Evaluator, nodes []Node, fn func(context.Context, Node) (T, error)) ([]T, error) {
	out := make([]T, len(nodes))
	if len(nodes) == 1 {
		v, err := fn(ctx, nodes[0])
		if err != nil {
			return nil, fault.Within(operandPath("", 0), err)
		}
		out[0] = v
		return out, nil
	}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i, n := range nodes {
		i, n := i, n
		group.Go(func() error {
			v, err := fn(ctx, n)
			if err != nil {
				return fault.Within(operandPath("", i), err)
			}
			out[i] = v
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func each[T any](ctx context.Context, e *Evaluator, dids []string, fn func(context.Context, string) (T, error)) ([]T, error) {
	out := make([]T, len(dids))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i, did := range dids {
		i, did := i, did
		group.Go(func() error {
			v, err := fn(ctx, did)
			if err != nil {
				return fmt.Errorf("%s: %w", did, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
