package functions

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"

	"github.com/ethereum/go-ethereum/common"
)

func argPath(i int) string {
	return fmt.Sprintf("arguments[%d]", i)
}

func argError(i int, format string, args ...any) error {
	return fault.New(fault.SchemaError, argPath(i), format, args...)
}

func checkArity(args []any, n int) error {
	if len(args) != n {
		return fault.New(fault.SchemaError, "arguments", "expected %d arguments got %d", n, len(args))
	}
	return nil
}

func stringArg(args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok || s == "" {
		return "", argError(i, "expected non-empty string got %T", args[i])
	}
	return s, nil
}

func stringListArg(args []any, i int) ([]string, error) {
	var list []any
	switch v := args[i].(type) {
	case []any:
		list = v
	case []string:
		return append([]string(nil), v...), nil
	default:
		return nil, argError(i, "expected list of strings got %T", args[i])
	}
	out := make([]string, len(list))
	for j, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fault.New(fault.SchemaError, fmt.Sprintf("%s[%d]", argPath(i), j), "expected string got %T", item)
		}
		out[j] = s
	}
	return out, nil
}

func numberArg(args []any, i int) (float64, error) {
	var f float64
	switch v := args[i].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, argError(i, "invalid number %q", v.String())
		}
		f = n
	case string:
		n, ok := new(big.Float).SetString(v)
		if !ok {
			return 0, argError(i, "invalid number %q", v)
		}
		f, _ = n.Float64()
	default:
		return 0, argError(i, "expected number got %T", args[i])
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, argError(i, "expected non-negative number got %v", f)
	}
	return f, nil
}

func intArg(args []any, i int) (int, error) {
	f, err := numberArg(args, i)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, argError(i, "expected integer got %v", f)
	}
	return int(f), nil
}

// amountArg parses a non-negative integer amount in token base units.
func amountArg(args []any, i int) (*big.Int, error) {
	var s string
	switch v := args[i].(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64, int, int64:
		s = fmt.Sprint(v)
	default:
		return nil, argError(i, "expected integer amount got %T", args[i])
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, argError(i, "invalid amount %q", s)
	}
	return amount, nil
}

func coinTypeArg(args []any, i int) (chain.CoinType, error) {
	v, err := intArg(args, i)
	if err != nil {
		return 0, err
	}
	return chain.CoinType(v), nil
}

func contractArg(args []any, i int) (common.Address, error) {
	s, err := stringArg(args, i)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, argError(i, "invalid contract address %q", s)
	}
	return common.HexToAddress(s), nil
}
