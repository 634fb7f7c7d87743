package did

import (
	"context"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/snapshot"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes resolutions of another resolver.
//
// A resolution at pinned heights never changes, so entries are never invalidated.
type Cached struct {
	inner Resolver
	cache *lru.Cache[string, Address]
}

// NewCached wraps inner with an LRU cache holding up to size entries.
func NewCached(inner Resolver, size int) (*Cached, error) {
	cache, err := lru.New[string, Address](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Resolve(ctx context.Context, did string, snapshots snapshot.Map) (Address, error) {
	pinned := make(snapshot.Map)
	for _, coinType := range c.inner.RequiredCoinTypes() {
		if h, ok := snapshots.Height(coinType); ok {
			pinned[coinType] = h
		}
	}
	key := did + "@" + pinned.Key()
	if addr, ok := c.cache.Get(key); ok {
		return addr, nil
	}
	addr, err := c.inner.Resolve(ctx, did, snapshots)
	if err != nil {
		return Address{}, err
	}
	c.cache.Add(key, addr)
	return addr, nil
}

func (c *Cached) RequiredCoinTypes() []chain.CoinType {
	return c.inner.RequiredCoinTypes()
}
