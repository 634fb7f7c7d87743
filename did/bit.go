package did

import (
	"context"
	"errors"
	"math/big"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/snapshot"

	"github.com/ethereum/go-ethereum/rpc"
)

// BitIndexer looks up the owner of a .bit account as of a CKB block.
type BitIndexer interface {
	AccountOwner(ctx context.Context, account string, height *big.Int) (string, error)
}

// BitResolver resolves .bit accounts anchored to the CKB chain.
type BitResolver struct {
	indexer BitIndexer
}

// NewBitResolver returns a resolver reading account owners from the given indexer.
func NewBitResolver(indexer BitIndexer) *BitResolver {
	return &BitResolver{indexer: indexer}
}

func (r *BitResolver) Resolve(ctx context.Context, did string, snapshots snapshot.Map) (Address, error) {
	height, err := pinnedHeight(snapshots, chain.CKB)
	if err != nil {
		return Address{}, err
	}
	owner, err := r.indexer.AccountOwner(ctx, did, height)
	if errors.Is(err, ErrNotRegistered) {
		return Address{}, fault.Wrap(fault.DidMismatch, "", err)
	}
	if err != nil {
		return Address{}, fault.Upstream(err)
	}
	return Address{CoinType: chain.CKB, Address: owner}, nil
}

func (r *BitResolver) RequiredCoinTypes() []chain.CoinType {
	return []chain.CoinType{chain.CKB}
}

// owner algorithm ids of Ethereum-keyed accounts
const (
	algorithmETH    = 3
	algorithmEIP712 = 5
)

type accountInfoResult struct {
	AccountInfo *struct {
		Account          string `json:"account"`
		OwnerAlgorithmID int    `json:"owner_algorithm_id"`
		OwnerKey         string `json:"owner_key"`
	} `json:"account_info"`
}

// RPCBitIndexer queries a .bit indexer over JSON-RPC.
type RPCBitIndexer struct {
	client *rpc.Client
}

// DialBitIndexer connects to the indexer at the given url.
func DialBitIndexer(ctx context.Context, url string) (*RPCBitIndexer, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &RPCBitIndexer{client: client}, nil
}

func (i *RPCBitIndexer) AccountOwner(ctx context.Context, account string, height *big.Int) (string, error) {
	params := map[string]any{
		"account":      account,
		"block_number": height.Uint64(),
	}
	var res accountInfoResult
	if err := i.client.CallContext(ctx, &res, "das_accountInfo", params); err != nil {
		return "", err
	}
	if res.AccountInfo == nil || res.AccountInfo.OwnerKey == "" {
		return "", ErrNotRegistered
	}
	switch res.AccountInfo.OwnerAlgorithmID {
	case algorithmETH, algorithmEIP712:
		return res.AccountInfo.OwnerKey, nil
	default:
		return "", fault.New(fault.UnsupportedDid, "", "owner algorithm %d of %s", res.AccountInfo.OwnerAlgorithmID, account)
	}
}
