package did

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/snapshot"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ensResolverAddress = common.HexToAddress("0x4976fb03C32e5B8cfe2b6cCB31c09Ba78EBaBa41")
	aliceAddress       = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func TestIsSubDID(t *testing.T) {
	assert.True(t, IsSubDID("alice.bob.bit", "bob.bit"))
	assert.True(t, IsSubDID("a.b.bob.bit", "bob.bit"))
	assert.False(t, IsSubDID("bob.bit", "bob.bit"))
	assert.False(t, IsSubDID("alicebob.bit", "bob.bit"))
	assert.False(t, IsSubDID("alice.bob.eth", "bob.bit"))
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, ".bit", Suffix("alice.bob.bit"))
	assert.Equal(t, ".eth", Suffix("vitalik.eth"))
	assert.Equal(t, "", Suffix("nodot"))
}

func TestAddressEqual(t *testing.T) {
	a := Address{CoinType: chain.ETH, Address: "0x00000000000000000000000000000000000A11CE"}
	b := Address{CoinType: chain.ETH, Address: aliceAddress.Hex()}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Address{CoinType: chain.CKB, Address: b.Address}))
}

func TestNameHash(t *testing.T) {
	assert.Equal(t, common.Hash{}, NameHash(""))
	assert.Equal(t, common.HexToHash("0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"), NameHash("eth"))
	assert.Equal(t, common.HexToHash("0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f"), NameHash("foo.eth"))
	assert.Equal(t, NameHash("foo.eth"), NameHash("FOO.eth"))
}

// fakeENS answers registry and resolver calls for alice.eth.
type fakeENS struct {
	calls  atomic.Int64
	blocks []*big.Int
}

func (f *fakeENS) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls.Add(1)
	f.blocks = append(f.blocks, block)
	method, err := ensContract.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	node := common.Hash(args[0].([32]byte))
	registered := node == NameHash("alice.eth")

	result := common.Address{}
	switch {
	case method.Name == "resolver" && *msg.To == DefaultENSRegistry && registered:
		result = ensResolverAddress
	case method.Name == "addr" && *msg.To == ensResolverAddress && registered:
		result = aliceAddress
	}
	return method.Outputs.Pack(result)
}

type failingCaller struct{}

func (failingCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func TestENSResolver(t *testing.T) {
	ens := &fakeENS{}
	resolver := NewENSResolver(ens, DefaultENSRegistry)
	snapshots := snapshot.Map{chain.ETH: big.NewInt(17000000)}

	addr, err := resolver.Resolve(context.Background(), "alice.eth", snapshots)
	require.NoError(t, err)
	assert.Equal(t, Address{CoinType: chain.ETH, Address: aliceAddress.Hex()}, addr)
	for _, block := range ens.blocks {
		assert.Equal(t, big.NewInt(17000000), block)
	}

	_, err = resolver.Resolve(context.Background(), "nobody.eth", snapshots)
	require.ErrorIs(t, err, fault.DidMismatch)
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = resolver.Resolve(context.Background(), "alice.eth", snapshot.Map{chain.CKB: big.NewInt(1)})
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "snapshot", fault.PathOf(err))

	_, err = NewENSResolver(failingCaller{}, DefaultENSRegistry).Resolve(context.Background(), "alice.eth", snapshots)
	require.ErrorIs(t, err, fault.UpstreamUnavailable)
}

type dasService struct {
	owners map[string]string
	blocks []float64
}

func (s *dasService) AccountInfo(params map[string]any) (*accountInfoResult, error) {
	s.blocks = append(s.blocks, params["block_number"].(float64))
	var res accountInfoResult
	account := params["account"].(string)
	owner, ok := s.owners[account]
	if !ok {
		return &res, nil
	}
	res.AccountInfo = &struct {
		Account          string `json:"account"`
		OwnerAlgorithmID int    `json:"owner_algorithm_id"`
		OwnerKey         string `json:"owner_key"`
	}{Account: account, OwnerAlgorithmID: algorithmETH, OwnerKey: owner}
	if account == "legacy.bit" {
		res.AccountInfo.OwnerAlgorithmID = 8
	}
	return &res, nil
}

func TestBitResolver(t *testing.T) {
	das := &dasService{owners: map[string]string{
		"alice.bit":  aliceAddress.Hex(),
		"legacy.bit": "ckt1qyq",
	}}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("das", das))
	defer server.Stop()

	resolver := NewBitResolver(&RPCBitIndexer{client: rpc.DialInProc(server)})
	snapshots := snapshot.Map{chain.CKB: big.NewInt(9000000)}

	addr, err := resolver.Resolve(context.Background(), "alice.bit", snapshots)
	require.NoError(t, err)
	assert.Equal(t, Address{CoinType: chain.CKB, Address: aliceAddress.Hex()}, addr)
	assert.Equal(t, []float64{9000000}, das.blocks)

	_, err = resolver.Resolve(context.Background(), "nobody.bit", snapshots)
	require.ErrorIs(t, err, fault.DidMismatch)

	_, err = resolver.Resolve(context.Background(), "legacy.bit", snapshots)
	require.ErrorIs(t, err, fault.UnsupportedDid)

	_, err = resolver.Resolve(context.Background(), "alice.bit", snapshot.Map{chain.ETH: big.NewInt(1)})
	require.ErrorIs(t, err, fault.SchemaError)
}

// staticResolver counts resolutions of a fixed address.
type staticResolver struct {
	coinType chain.CoinType
	calls    atomic.Int64
}

func (r *staticResolver) Resolve(ctx context.Context, did string, snapshots snapshot.Map) (Address, error) {
	r.calls.Add(1)
	if _, ok := snapshots.Height(r.coinType); !ok {
		return Address{}, fault.New(fault.SchemaError, "snapshot", "missing")
	}
	return Address{CoinType: r.coinType, Address: did}, nil
}

func (r *staticResolver) RequiredCoinTypes() []chain.CoinType {
	return []chain.CoinType{r.coinType}
}

func TestDispatcher(t *testing.T) {
	bit := &staticResolver{coinType: chain.CKB}
	eth := &staticResolver{coinType: chain.ETH}
	d := NewDispatcher(map[string]Resolver{"bit": bit, ".eth": eth})

	assert.Equal(t, []string{".bit", ".eth"}, d.Suffixes())
	assert.Equal(t, []chain.CoinType{chain.ETH, chain.CKB}, d.RequiredCoinTypes())

	snapshots := snapshot.Map{chain.ETH: big.NewInt(1), chain.CKB: big.NewInt(2)}
	addr, err := d.Resolve(context.Background(), "alice.bit", snapshots)
	require.NoError(t, err)
	assert.Equal(t, chain.CKB, addr.CoinType)

	addr, err = d.Resolve(context.Background(), "alice.eth", snapshots)
	require.NoError(t, err)
	assert.Equal(t, chain.ETH, addr.CoinType)

	_, err = d.Resolve(context.Background(), "alice.sol", snapshots)
	require.ErrorIs(t, err, fault.UnsupportedDid)
}

func TestCached(t *testing.T) {
	inner := &staticResolver{coinType: chain.CKB}
	cached, err := NewCached(inner, 16)
	require.NoError(t, err)

	at := func(ckb, eth int64) snapshot.Map {
		return snapshot.Map{chain.CKB: big.NewInt(ckb), chain.ETH: big.NewInt(eth)}
	}
	for i := 0; i < 3; i++ {
		_, err := cached.Resolve(context.Background(), "alice.bit", at(100, int64(i)))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), inner.calls.Load(), "heights of unread chains are not part of the key")

	_, err = cached.Resolve(context.Background(), "alice.bit", at(101, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())

	_, err = cached.Resolve(context.Background(), "alice.bit", snapshot.Map{})
	require.Error(t, err)
	_, err = cached.Resolve(context.Background(), "alice.bit", snapshot.Map{})
	require.Error(t, err)
	assert.Equal(t, int64(4), inner.calls.Load(), "failures are not cached")
}
