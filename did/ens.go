package did

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/snapshot"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultENSRegistry is the ENS registry address on Ethereum mainnet.
var DefaultENSRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const ensABI = `[
{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"type":"function"},
{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

var ensContract = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ensABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// NameHash returns the EIP-137 node of a lowercased ENS name.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label)
	}
	return node
}

// ENSResolver resolves .eth names with the ENS registry at a pinned Ethereum block.
type ENSResolver struct {
	caller   chain.ContractCaller
	registry common.Address
}

// NewENSResolver returns a resolver that reads the registry through caller.
func NewENSResolver(caller chain.ContractCaller, registry common.Address) *ENSResolver {
	return &ENSResolver{caller: caller, registry: registry}
}

func (r *ENSResolver) Resolve(ctx context.Context, did string, snapshots snapshot.Map) (Address, error) {
	height, err := pinnedHeight(snapshots, chain.ETH)
	if err != nil {
		return Address{}, err
	}
	node := NameHash(did)
	resolver, err := r.call(ctx, r.registry, "resolver", node, height)
	if err != nil {
		return Address{}, err
	}
	if resolver == (common.Address{}) {
		return Address{}, fault.Wrap(fault.DidMismatch, "", ErrNotRegistered)
	}
	owner, err := r.call(ctx, resolver, "addr", node, height)
	if err != nil {
		return Address{}, err
	}
	if owner == (common.Address{}) {
		return Address{}, fault.Wrap(fault.DidMismatch, "", ErrNotRegistered)
	}
	return Address{CoinType: chain.ETH, Address: owner.Hex()}, nil
}

func (r *ENSResolver) RequiredCoinTypes() []chain.CoinType {
	return []chain.CoinType{chain.ETH}
}

func (r *ENSResolver) call(ctx context.Context, contract common.Address, method string, node common.Hash, height *big.Int) (common.Address, error) {
	input, err := ensContract.Pack(method, node)
	if err != nil {
		return common.Address{}, err
	}
	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, height)
	if err != nil {
		return common.Address{}, fault.Upstream(err)
	}
	values, err := ensContract.Unpack(method, output)
	if err != nil {
		return common.Address{}, fault.Upstream(err)
	}
	if len(values) != 1 {
		return common.Address{}, fault.Upstream(fmt.Errorf("unexpected %s result length %d", method, len(values)))
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fault.Upstream(fmt.Errorf("unexpected %s result type %T", method, values[0]))
	}
	return addr, nil
}
