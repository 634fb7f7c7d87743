// Package quorum verifies and stores the signed documents of DID based communities.
package quorum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/config"
	"github.com/nasdf/quorum/did"
	"github.com/nasdf/quorum/document"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/functions"
	"github.com/nasdf/quorum/link"
	"github.com/nasdf/quorum/node"
	"github.com/nasdf/quorum/sets"
	"github.com/nasdf/quorum/signature"
	"github.com/nasdf/quorum/snapshot"
	"github.com/nasdf/quorum/storage"
	"github.com/nasdf/quorum/verify"

	"github.com/ethereum/go-ethereum/common"
)

// Quorum accepts documents that pass verification into a content addressed store.
type Quorum struct {
	store     *link.Store
	closer    io.Closer
	resolver  did.Resolver
	suffixes  []string
	snapshots *snapshot.Service
	evaluator *sets.Evaluator
	verifier  *verify.Verifier
	logger    *slog.Logger
}

type options struct {
	logger    *slog.Logger
	storage   storage.Storage
	clients   map[chain.CoinType]chain.Client
	resolvers map[string]did.Resolver
	recover   signature.Recoverer
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStorage replaces the storage selected by the configuration.
func WithStorage(s storage.Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithChain uses client instead of dialing the configured endpoint for coinType.
//
// Clients that also implement chain.ContractCaller serve token balances and ENS.
func WithChain(coinType chain.CoinType, client chain.Client) Option {
	return func(o *options) {
		o.clients[coinType] = client
	}
}

// WithResolver uses r for DIDs ending in suffix.
func WithResolver(suffix string, r did.Resolver) Option {
	return func(o *options) {
		o.resolvers[suffix] = r
	}
}

func WithRecoverer(recover signature.Recoverer) Option {
	return func(o *options) {
		o.recover = recover
	}
}

// Open wires every component described by cfg.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Quorum, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clients:   make(map[chain.CoinType]chain.Client),
		resolvers: make(map[string]did.Resolver),
	}
	for _, opt := range opts {
		opt(o)
	}

	q := &Quorum{logger: o.logger}
	store := o.storage
	if store == nil && cfg.Storage.Path != "" {
		db, err := storage.OpenLevelDB(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store, q.closer = db, db
	}
	if store == nil {
		store = storage.NewMemory()
	}
	q.store = link.NewStore(store)

	for _, c := range cfg.Chains {
		if _, ok := o.clients[c.CoinType]; ok {
			continue
		}
		client, err := chain.Dial(ctx, c.CoinType, c.RPC)
		if err != nil {
			q.Close()
			return nil, fmt.Errorf("dial coin type %s: %w", c.CoinType, err)
		}
		o.clients[c.CoinType] = client
	}
	callers := make(map[chain.CoinType]chain.ContractCaller)
	for coinType, client := range o.clients {
		if caller, ok := client.(chain.ContractCaller); ok {
			callers[coinType] = caller
		}
	}

	if _, ok := o.resolvers[".bit"]; !ok && cfg.BitIndexer != "" {
		indexer, err := did.DialBitIndexer(ctx, cfg.BitIndexer)
		if err != nil {
			q.Close()
			return nil, fmt.Errorf("dial bit indexer: %w", err)
		}
		o.resolvers[".bit"] = did.NewBitResolver(indexer)
	}
	if _, ok := o.resolvers[".eth"]; !ok && callers[chain.ETH] != nil {
		o.resolvers[".eth"] = did.NewENSResolver(callers[chain.ETH], common.HexToAddress(cfg.ENSRegistry))
	}
	dispatcher := did.NewDispatcher(o.resolvers)
	q.suffixes = dispatcher.Suffixes()
	var resolver did.Resolver = dispatcher
	if cfg.CacheSize > 0 {
		cached, err := did.NewCached(resolver, cfg.CacheSize)
		if err != nil {
			q.Close()
			return nil, err
		}
		resolver = cached
	}
	q.resolver = resolver

	registry := functions.NewRegistry(functions.Env{Resolver: resolver, Callers: callers})
	q.evaluator = sets.NewEvaluator(registry, sets.WithConcurrency(cfg.Concurrency))
	q.snapshots = snapshot.NewService(o.clients,
		snapshot.WithTolerance(cfg.Tolerance),
		snapshot.WithConcurrency(cfg.Concurrency))

	verifyOpts := []verify.Option{verify.WithLogger(o.logger)}
	if o.recover != nil {
		verifyOpts = append(verifyOpts, verify.WithRecoverer(o.recover))
	}
	q.verifier = verify.New(storeFetcher{q.store}, resolver, q.snapshots, q.evaluator, verifyOpts...)

	o.logger.Debug("quorum opened", "chains", len(o.clients), "did_suffixes", len(o.resolvers), "storage", cfg.Storage.Path)
	return q, nil
}

// Verify checks raw without storing it.
func (q *Quorum) Verify(ctx context.Context, kind document.Kind, raw map[string]any) (*verify.Accepted, error) {
	return q.verifier.Verify(ctx, kind, raw)
}

// Submit verifies raw and stores it when accepted. Rejected documents are never stored.
func (q *Quorum) Submit(ctx context.Context, kind document.Kind, raw map[string]any) (string, error) {
	accepted, err := q.verifier.Verify(ctx, kind, raw)
	if err != nil {
		return "", err
	}
	n, err := node.Build(accepted.Raw)
	if err != nil {
		return "", err
	}
	uri, err := q.store.Put(ctx, n)
	if err != nil {
		return "", err
	}
	if uri != accepted.URI {
		return "", fmt.Errorf("stored document at %s expected %s", uri, accepted.URI)
	}
	q.logger.Info("document stored", "kind", kind, "uri", uri)
	return uri, nil
}

// Get returns the stored document with the given URI.
func (q *Quorum) Get(ctx context.Context, uri string) (map[string]any, error) {
	return storeFetcher{q.store}.Fetch(ctx, uri)
}

func (q *Quorum) Store() *link.Store {
	return q.store
}

func (q *Quorum) Resolver() did.Resolver {
	return q.resolver
}

// Suffixes returns the DID suffixes a resolver is configured for.
func (q *Quorum) Suffixes() []string {
	return q.suffixes
}

func (q *Quorum) Snapshots() *snapshot.Service {
	return q.snapshots
}

func (q *Quorum) Evaluator() *sets.Evaluator {
	return q.evaluator
}

// Close releases the storage opened from the configuration.
func (q *Quorum) Close() error {
	if q.closer == nil {
		return nil
	}
	return q.closer.Close()
}

// storeFetcher reads parent documents from the link store.
type storeFetcher struct {
	store *link.Store
}

func (f storeFetcher) Fetch(ctx context.Context, uri string) (map[string]any, error) {
	if _, err := link.ParseURI(uri); err != nil {
		return nil, fault.Wrap(fault.SchemaError, "", err)
	}
	n, err := f.store.Get(ctx, uri)
	if errors.Is(err, link.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", verify.ErrNotFound, uri)
	}
	if err != nil {
		return nil, err
	}
	return node.Document(n)
}
