package functions

import (
	"context"
	"math/big"
	"slices"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/did"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/snapshot"

	"github.com/ethereum/go-ethereum/common"
)

// BuiltinBooleans returns the built-in boolean functions.
func BuiltinBooleans() map[string]Factory[bool] {
	return map[string]Factory[bool]{
		"is_did":        newIsDID,
		"is_sub_did_of": newIsSubDIDOf,
		"owns_erc20":    newOwnsERC20,
		"owns_erc721":   newOwnsERC721,
	}
}

// BuiltinNumbers returns the built-in number functions.
func BuiltinNumbers() map[string]Factory[float64] {
	return map[string]Factory[float64]{
		"static_power":  newStaticPower,
		"sub_did_power": newSubDIDPower,
		"erc20_balance": newERC20Balance,
	}
}

type pure[T bool | float64] func(did string) T

func (f pure[T]) RequiredCoinTypes() []chain.CoinType {
	return nil
}

func (f pure[T]) Execute(ctx context.Context, did string, snapshots snapshot.Map) (T, error) {
	return f(did), nil
}

func newIsDID(env Env, args []any) (Descriptor[bool], error) {
	if err := checkArity(args, 1); err != nil {
		return nil, err
	}
	dids, err := stringListArg(args, 0)
	if err != nil {
		return nil, err
	}
	return pure[bool](func(d string) bool {
		return slices.Contains(dids, d)
	}), nil
}

func newIsSubDIDOf(env Env, args []any) (Descriptor[bool], error) {
	if err := checkArity(args, 1); err != nil {
		return nil, err
	}
	parents, err := stringListArg(args, 0)
	if err != nil {
		return nil, err
	}
	return pure[bool](func(d string) bool {
		return isSubDIDOfAny(d, parents)
	}), nil
}

func newStaticPower(env Env, args []any) (Descriptor[float64], error) {
	if err := checkArity(args, 2); err != nil {
		return nil, err
	}
	power, err := numberArg(args, 0)
	if err != nil {
		return nil, err
	}
	dids, err := stringListArg(args, 1)
	if err != nil {
		return nil, err
	}
	return pure[float64](func(d string) float64 {
		if slices.Contains(dids, d) {
			return power
		}
		return 0
	}), nil
}

func newSubDIDPower(env Env, args []any) (Descriptor[float64], error) {
	if err := checkArity(args, 2); err != nil {
		return nil, err
	}
	power, err := numberArg(args, 0)
	if err != nil {
		return nil, err
	}
	parents, err := stringListArg(args, 1)
	if err != nil {
		return nil, err
	}
	return pure[float64](func(d string) float64 {
		if isSubDIDOfAny(d, parents) {
			return power
		}
		return 0
	}), nil
}

func isSubDIDOfAny(d string, parents []string) bool {
	for _, p := range parents {
		if did.IsSubDID(d, p) {
			return true
		}
	}
	return false
}

// tokenQuery reads a token balance of the address a DID resolves to.
type tokenQuery struct {
	env      Env
	coinType chain.CoinType
	contract common.Address
	caller   chain.ContractCaller
}

func newTokenQuery(env Env, args []any) (*tokenQuery, error) {
	coinType, err := coinTypeArg(args, 0)
	if err != nil {
		return nil, err
	}
	contract, err := contractArg(args, 1)
	if err != nil {
		return nil, err
	}
	caller, ok := env.Callers[coinType]
	if !ok {
		return nil, argError(0, "no contract client for coin type %s", coinType)
	}
	if env.Resolver == nil {
		return nil, fault.New(fault.UnsupportedDid, "", "no did resolver configured")
	}
	return &tokenQuery{env: env, coinType: coinType, contract: contract, caller: caller}, nil
}

func (q *tokenQuery) RequiredCoinTypes() []chain.CoinType {
	out := []chain.CoinType{q.coinType}
	for _, c := range q.env.Resolver.RequiredCoinTypes() {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func (q *tokenQuery) balance(ctx context.Context, d string, snapshots snapshot.Map) (*big.Int, error) {
	height, ok := snapshots.Height(q.coinType)
	if !ok {
		return nil, fault.New(fault.SchemaError, "snapshot", "missing snapshot for coin type %s", q.coinType)
	}
	addr, err := q.env.Resolver.Resolve(ctx, d, snapshots)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(addr.Address) {
		return nil, fault.New(fault.UnsupportedDid, "", "%s does not resolve to an EVM address", d)
	}
	balance, err := chain.TokenBalance(ctx, q.caller, q.contract, common.HexToAddress(addr.Address), height)
	if err != nil {
		return nil, fault.Upstream(err)
	}
	return balance, nil
}

type ownsToken struct {
	*tokenQuery
	minimum *big.Int
}

func (f *ownsToken) Execute(ctx context.Context, d string, snapshots snapshot.Map) (bool, error) {
	balance, err := f.balance(ctx, d, snapshots)
	if err != nil {
		return false, err
	}
	return balance.Cmp(f.minimum) >= 0, nil
}

func newOwnsERC20(env Env, args []any) (Descriptor[bool], error) {
	if err := checkArity(args, 3); err != nil {
		return nil, err
	}
	q, err := newTokenQuery(env, args)
	if err != nil {
		return nil, err
	}
	minimum, err := amountArg(args, 2)
	if err != nil {
		return nil, err
	}
	return &ownsToken{tokenQuery: q, minimum: minimum}, nil
}

func newOwnsERC721(env Env, args []any) (Descriptor[bool], error) {
	if err := checkArity(args, 2); err != nil {
		return nil, err
	}
	q, err := newTokenQuery(env, args)
	if err != nil {
		return nil, err
	}
	return &ownsToken{tokenQuery: q, minimum: big.NewInt(1)}, nil
}

type tokenBalance struct {
	*tokenQuery
	unit *big.Float
}

func (f *tokenBalance) Execute(ctx context.Context, d string, snapshots snapshot.Map) (float64, error) {
	balance, err := f.balance(ctx, d, snapshots)
	if err != nil {
		return 0, err
	}
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), f.unit).Float64()
	return value, nil
}

func newERC20Balance(env Env, args []any) (Descriptor[float64], error) {
	if err := checkArity(args, 3); err != nil {
		return nil, err
	}
	q, err := newTokenQuery(env, args)
	if err != nil {
		return nil, err
	}
	decimals, err := intArg(args, 2)
	if err != nil {
		return nil, err
	}
	if decimals > 77 {
		return nil, argError(2, "decimals %d out of range", decimals)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return &tokenBalance{tokenQuery: q, unit: new(big.Float).SetInt(unit)}, nil
}
