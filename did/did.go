// Package did resolves decentralized identifiers to chain addresses at pinned snapshots.
package did

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/snapshot"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotRegistered is returned when a name has no owner at the pinned snapshot.
var ErrNotRegistered = errors.New("did is not registered")

// Address is the chain address a DID resolves to.
type Address struct {
	CoinType chain.CoinType
	Address  string
}

// Equal reports whether both addresses are on the same chain and refer to the same account.
func (a Address) Equal(other Address) bool {
	if a.CoinType != other.CoinType {
		return false
	}
	if common.IsHexAddress(a.Address) && common.IsHexAddress(other.Address) {
		return common.HexToAddress(a.Address) == common.HexToAddress(other.Address)
	}
	return a.Address == other.Address
}

// Resolver resolves a DID using only the heights pinned in the snapshot map.
type Resolver interface {
	Resolve(ctx context.Context, did string, snapshots snapshot.Map) (Address, error)
	// RequiredCoinTypes returns the chains whose heights Resolve reads.
	RequiredCoinTypes() []chain.CoinType
}

// Suffix returns the method suffix of the DID including the leading dot.
func Suffix(did string) string {
	i := strings.LastIndexByte(did, '.')
	if i < 0 {
		return ""
	}
	return did[i:]
}

// IsSubDID reports whether did is a sub-DID of parent, such as alice.bob.bit of bob.bit.
func IsSubDID(did, parent string) bool {
	return len(did) > len(parent)+1 && strings.HasSuffix(did, "."+parent)
}

// Dispatcher routes resolution to the resolver registered for the DID suffix.
//
// A Dispatcher is read-only once created and safe for concurrent use.
type Dispatcher struct {
	resolvers map[string]Resolver
}

// NewDispatcher returns a dispatcher for the given suffix to resolver table.
func NewDispatcher(resolvers map[string]Resolver) *Dispatcher {
	d := &Dispatcher{resolvers: make(map[string]Resolver, len(resolvers))}
	for suffix, r := range resolvers {
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		d.resolvers[suffix] = r
	}
	return d
}

// Resolve resolves the DID with the resolver for its suffix.
func (d *Dispatcher) Resolve(ctx context.Context, did string, snapshots snapshot.Map) (Address, error) {
	r, ok := d.resolvers[Suffix(did)]
	if !ok {
		return Address{}, fault.New(fault.UnsupportedDid, "", "no resolver for %q", did)
	}
	return r.Resolve(ctx, did, snapshots)
}

// RequiredCoinTypes returns the union of the chains every registered resolver reads.
func (d *Dispatcher) RequiredCoinTypes() []chain.CoinType {
	seen := make(map[chain.CoinType]struct{})
	for _, r := range d.resolvers {
		for _, c := range r.RequiredCoinTypes() {
			seen[c] = struct{}{}
		}
	}
	out := make([]chain.CoinType, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Suffixes returns the supported DID suffixes.
func (d *Dispatcher) Suffixes() []string {
	out := make([]string, 0, len(d.resolvers))
	for s := range d.resolvers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func pinnedHeight(snapshots snapshot.Map, coinType chain.CoinType) (*big.Int, error) {
	height, ok := snapshots.Height(coinType)
	if !ok {
		return nil, fault.New(fault.SchemaError, "snapshot", "missing snapshot for coin type %s", coinType)
	}
	return height, nil
}
