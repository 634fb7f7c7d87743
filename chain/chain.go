// Package chain describes the blockchains that snapshots and balances are read from.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// CoinType is a SLIP-44 chain identifier.
type CoinType int

const (
	ETH CoinType = 60
	CKB CoinType = 309
)

func (c CoinType) String() string {
	return strconv.Itoa(int(c))
}

// ParseCoinType parses the decimal form of a coin type.
func ParseCoinType(s string) (CoinType, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid coin type %q", s)
	}
	return CoinType(v), nil
}

// Client reads the current height of a chain.
type Client interface {
	BlockNumber(ctx context.Context) (*big.Int, error)
}

// ContractCaller executes read-only contract calls at a fixed block.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Ethereum is a Client and ContractCaller backed by an Ethereum JSON-RPC endpoint.
type Ethereum struct {
	*ethclient.Client
}

// BlockNumber returns the most recent block number.
func (e Ethereum) BlockNumber(ctx context.Context) (*big.Int, error) {
	n, err := e.Client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(n), nil
}

// Nervos is a Client backed by a CKB JSON-RPC endpoint.
type Nervos struct {
	*rpc.Client
}

// BlockNumber returns the tip block number.
func (n Nervos) BlockNumber(ctx context.Context) (*big.Int, error) {
	var tip hexutil.Uint64
	if err := n.CallContext(ctx, &tip, "get_tip_block_number"); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(uint64(tip)), nil
}

// Dial connects to the JSON-RPC endpoint of the chain with the given coin type.
func Dial(ctx context.Context, coinType CoinType, url string) (Client, error) {
	switch coinType {
	case CKB:
		c, err := rpc.DialContext(ctx, url)
		if err != nil {
			return nil, err
		}
		return Nervos{c}, nil
	default:
		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, err
		}
		return Ethereum{c}, nil
	}
}
