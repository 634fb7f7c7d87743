package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// balanceOf(address) is shared by ERC-20 and ERC-721.
const tokenABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

var tokenContract = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// TokenBalance returns the token balance of owner at the given block.
func TokenBalance(ctx context.Context, caller ContractCaller, contract, owner common.Address, block *big.Int) (*big.Int, error) {
	if block == nil {
		return nil, errors.New("token balance requires a pinned block")
	}
	input, err := tokenContract.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, block)
	if err != nil {
		return nil, err
	}
	values, err := tokenContract.Unpack("balanceOf", output)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf result length %d", len(values))
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return balance, nil
}
