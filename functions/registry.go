// Package functions provides the named leaf functions of boolean and number sets.
package functions

import (
	"context"
	"sort"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/did"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/snapshot"
)

// Descriptor is a function instantiated with its arguments.
type Descriptor[T bool | float64] interface {
	// RequiredCoinTypes returns the chains whose heights Execute reads.
	RequiredCoinTypes() []chain.CoinType
	// Execute evaluates the function for the DID at the pinned snapshots.
	Execute(ctx context.Context, did string, snapshots snapshot.Map) (T, error)
}

// BooleanFunction decides whether a DID is eligible.
type BooleanFunction = Descriptor[bool]

// NumberFunction computes the weight of a DID.
type NumberFunction = Descriptor[float64]

// Factory instantiates a function from its arguments.
//
// Factories never perform network calls; argument errors are reported at construction.
type Factory[T bool | float64] func(env Env, args []any) (Descriptor[T], error)

// Env holds the collaborators functions may read chain state through.
type Env struct {
	Resolver did.Resolver
	Callers  map[chain.CoinType]chain.ContractCaller
}

// Registry maps function names to factories.
//
// A Registry is read-only once created and safe for concurrent use.
type Registry struct {
	env      Env
	booleans map[string]Factory[bool]
	numbers  map[string]Factory[float64]
}

// NewRegistry returns a registry with every built-in function.
func NewRegistry(env Env) *Registry {
	return NewRegistryWith(env, BuiltinBooleans(), BuiltinNumbers())
}

// NewRegistryWith returns a registry with only the given functions.
func NewRegistryWith(env Env, booleans map[string]Factory[bool], numbers map[string]Factory[float64]) *Registry {
	r := &Registry{
		env:      env,
		booleans: make(map[string]Factory[bool], len(booleans)),
		numbers:  make(map[string]Factory[float64], len(numbers)),
	}
	for k, v := range booleans {
		r.booleans[k] = v
	}
	for k, v := range numbers {
		r.numbers[k] = v
	}
	return r
}

// Boolean instantiates the named boolean function.
func (r *Registry) Boolean(name string, args []any) (BooleanFunction, error) {
	factory, ok := r.booleans[name]
	if !ok {
		return nil, fault.New(fault.UnsupportedFunction, "function", "unknown boolean function %q", name)
	}
	return factory(r.env, args)
}

// Number instantiates the named number function.
func (r *Registry) Number(name string, args []any) (NumberFunction, error) {
	factory, ok := r.numbers[name]
	if !ok {
		return nil, fault.New(fault.UnsupportedFunction, "function", "unknown number function %q", name)
	}
	return factory(r.env, args)
}

// RequiredCoinTypes returns the chains the named function of either kind reads.
func (r *Registry) RequiredCoinTypes(name string, args []any) ([]chain.CoinType, error) {
	if factory, ok := r.booleans[name]; ok {
		fn, err := factory(r.env, args)
		if err != nil {
			return nil, err
		}
		return fn.RequiredCoinTypes(), nil
	}
	if factory, ok := r.numbers[name]; ok {
		fn, err := factory(r.env, args)
		if err != nil {
			return nil, err
		}
		return fn.RequiredCoinTypes(), nil
	}
	return nil, fault.New(fault.UnsupportedFunction, "function", "unknown function %q", name)
}

// BooleanNames returns the names of the registered boolean functions.
func (r *Registry) BooleanNames() []string {
	return sortedKeys(r.booleans)
}

// NumberNames returns the names of the registered number functions.
func (r *Registry) NumberNames() []string {
	return sortedKeys(r.numbers)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
