package snapshot

import (
	"context"
	"math/big"
	"sync"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTolerance is the number of blocks a snapshot may differ from the chain tip.
	DefaultTolerance = 5
	// DefaultConcurrency bounds the number of chains queried at once.
	DefaultConcurrency = 5
)

// Service reads chain heights and checks the freshness of submitted snapshots.
type Service struct {
	clients     map[chain.CoinType]chain.Client
	tolerance   *big.Int
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithTolerance sets the accepted distance in blocks from the chain tip.
func WithTolerance(blocks int64) Option {
	return func(s *Service) {
		s.tolerance = big.NewInt(blocks)
	}
}

// WithConcurrency sets how many chains are queried at once by Take.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService returns a Service reading heights from the given clients.
func NewService(clients map[chain.CoinType]chain.Client, opts ...Option) *Service {
	s := &Service{
		clients:     make(map[chain.CoinType]chain.Client, len(clients)),
		tolerance:   big.NewInt(DefaultTolerance),
		concurrency: DefaultConcurrency,
	}
	for k, v := range clients {
		s.clients[k] = v
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the current height of the chain with the given coin type.
func (s *Service) Current(ctx context.Context, coinType chain.CoinType) (*big.Int, error) {
	client, ok := s.clients[coinType]
	if !ok {
		return nil, fault.New(fault.SchemaError, "coin_type", "no client for coin type %s", coinType)
	}
	height, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, fault.Upstream(err)
	}
	return height, nil
}

// Take returns a snapshot of the current height of every given chain.
func (s *Service) Take(ctx context.Context, coinTypes []chain.CoinType) (Map, error) {
	var mu sync.Mutex
	out := make(Map, len(coinTypes))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for _, c := range coinTypes {
		c := c
		group.Go(func() error {
			height, err := s.Current(ctx, c)
			if err != nil {
				return err
			}
			mu.Lock()
			out[c] = height
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckFresh fails with fault.StaleSnapshot when height is further than the
// tolerance from the current height of the chain.
func (s *Service) CheckFresh(ctx context.Context, coinType chain.CoinType, height *big.Int) error {
	current, err := s.Current(ctx, coinType)
	if err != nil {
		return err
	}
	distance := new(big.Int).Sub(current, height)
	if distance.Abs(distance).Cmp(s.tolerance) > 0 {
		return fault.New(fault.StaleSnapshot, "", "height %s is not within %s blocks of %s on coin type %s", height, s.tolerance, current, coinType)
	}
	return nil
}

// CheckFreshAll checks every entry of the map with CheckFresh.
func (s *Service) CheckFreshAll(ctx context.Context, snapshots Map) error {
	for _, c := range snapshots.CoinTypes() {
		if err := s.CheckFresh(ctx, c, snapshots[c]); err != nil {
			return fault.Within(c.String(), err)
		}
	}
	return nil
}
