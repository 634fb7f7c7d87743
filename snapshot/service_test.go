package snapshot

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	height int64
	err    error
	calls  atomic.Int64
}

func (c *fakeChain) BlockNumber(ctx context.Context) (*big.Int, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return big.NewInt(c.height), nil
}

func TestCheckFresh(t *testing.T) {
	service := NewService(map[chain.CoinType]chain.Client{chain.ETH: &fakeChain{height: 100}})

	for offset := int64(-7); offset <= 7; offset++ {
		t.Run(strconv.FormatInt(offset, 10), func(t *testing.T) {
			err := service.CheckFresh(context.Background(), chain.ETH, big.NewInt(100+offset))
			if offset < -5 || offset > 5 {
				require.ErrorIs(t, err, fault.StaleSnapshot)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCheckFreshTolerance(t *testing.T) {
	service := NewService(map[chain.CoinType]chain.Client{chain.ETH: &fakeChain{height: 100}}, WithTolerance(0))

	require.NoError(t, service.CheckFresh(context.Background(), chain.ETH, big.NewInt(100)))
	require.ErrorIs(t, service.CheckFresh(context.Background(), chain.ETH, big.NewInt(99)), fault.StaleSnapshot)
}

func TestCurrentErrors(t *testing.T) {
	service := NewService(map[chain.CoinType]chain.Client{
		chain.ETH: &fakeChain{err: errors.New("503 service unavailable")},
	})

	_, err := service.Current(context.Background(), chain.ETH)
	require.ErrorIs(t, err, fault.UpstreamUnavailable)

	_, err = service.Current(context.Background(), chain.CKB)
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "coin_type", fault.PathOf(err))
}

func TestTake(t *testing.T) {
	eth := &fakeChain{height: 17000000}
	ckb := &fakeChain{height: 9000000}
	service := NewService(map[chain.CoinType]chain.Client{chain.ETH: eth, chain.CKB: ckb}, WithConcurrency(1))

	snapshots, err := service.Take(context.Background(), []chain.CoinType{chain.CKB, chain.ETH, chain.CKB})
	require.NoError(t, err)
	assert.Equal(t, []chain.CoinType{chain.ETH, chain.CKB}, snapshots.CoinTypes())

	height, ok := snapshots.Height(chain.ETH)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(17000000), height)

	require.NoError(t, service.CheckFreshAll(context.Background(), snapshots))

	ckb.height += 6
	err = service.CheckFreshAll(context.Background(), snapshots)
	require.ErrorIs(t, err, fault.StaleSnapshot)
	assert.Equal(t, "309", fault.PathOf(err))
}
