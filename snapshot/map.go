// Package snapshot pins evaluations to per-chain block heights.
package snapshot

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/nasdf/quorum/chain"
)

// Map holds a block height for each chain an evaluation reads from.
//
// A Map is never mutated once it has been handed to an evaluation.
type Map map[chain.CoinType]*big.Int

// Height returns the pinned height for the given chain.
func (m Map) Height(coinType chain.CoinType) (*big.Int, bool) {
	h, ok := m[coinType]
	if !ok || h == nil {
		return nil, false
	}
	return new(big.Int).Set(h), true
}

// CoinTypes returns the pinned chains in ascending order.
func (m Map) CoinTypes() []chain.CoinType {
	out := make([]chain.CoinType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Key returns a stable string form of the map suitable for cache keys.
func (m Map) Key() string {
	var key string
	for _, c := range m.CoinTypes() {
		key += c.String() + "=" + m[c].String() + ";"
	}
	return key
}

func (m Map) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k.String()] = v.String()
	}
	return json.Marshal(out)
}

func (m *Map) UnmarshalJSON(data []byte) error {
	var in map[string]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out, err := Parse(in)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// Parse builds a Map from its wire form.
func Parse(in map[string]string) (Map, error) {
	out := make(Map, len(in))
	for k, v := range in {
		coinType, err := chain.ParseCoinType(k)
		if err != nil {
			return nil, err
		}
		height, err := ParseHeight(v)
		if err != nil {
			return nil, fmt.Errorf("snapshot for coin type %s: %w", k, err)
		}
		out[coinType] = height
	}
	return out, nil
}

// ParseHeight parses a non-negative decimal block height.
func ParseHeight(s string) (*big.Int, error) {
	height, ok := new(big.Int).SetString(s, 10)
	if !ok || height.Sign() < 0 {
		return nil, fmt.Errorf("invalid block height %q", s)
	}
	return height, nil
}
