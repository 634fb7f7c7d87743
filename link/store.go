// Package link stores documents by content address.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nasdf/quorum/storage"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/linking"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/multiformats/go-multicodec"

	// codecs need to be initialized and registered
	_ "github.com/ipld/go-ipld-prime/codec/dagcbor"
	_ "github.com/ipld/go-ipld-prime/codec/dagjson"
)

// Scheme prefixes every document URI.
const Scheme = "ipfs://"

var ErrNotFound = errors.New("document not found")

var linkPrototype = cidlink.LinkPrototype{Prefix: cid.Prefix{
	Version:  1,
	Codec:    uint64(multicodec.DagJson),
	MhType:   uint64(multicodec.Sha2_256),
	MhLength: 32,
}}

// Store is a content addressable document store.
type Store struct {
	lsys    linking.LinkSystem
	storage storage.Storage
}

// NewStore returns a new Store that uses the given storage to read and write content addressable data.
func NewStore(store storage.Storage) *Store {
	lsys := cidlink.DefaultLinkSystem()
	lsys.SetReadStorage(store)
	lsys.SetWriteStorage(store)

	return &Store{
		lsys:    lsys,
		storage: store,
	}
}

// Put writes the given node to the store and returns its URI.
func (s *Store) Put(ctx context.Context, node datamodel.Node) (string, error) {
	lnk, err := s.lsys.Store(linking.LinkContext{Ctx: ctx}, linkPrototype, node)
	if err != nil {
		return "", err
	}
	return URI(lnk), nil
}

// Has reports whether the document with the given URI is stored.
func (s *Store) Has(ctx context.Context, uri string) (bool, error) {
	lnk, err := ParseURI(uri)
	if err != nil {
		return false, err
	}
	return s.storage.Has(ctx, lnk.Binary())
}

// Get returns the document with the given URI.
func (s *Store) Get(ctx context.Context, uri string) (datamodel.Node, error) {
	lnk, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	has, err := s.storage.Has(ctx, lnk.Binary())
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return s.lsys.Load(linking.LinkContext{Ctx: ctx}, lnk, basicnode.Prototype.Any)
}

// URI returns the document URI of the given link.
func URI(lnk datamodel.Link) string {
	return Scheme + lnk.String()
}

// ParseURI returns the link addressed by the given document URI.
func ParseURI(uri string) (cidlink.Link, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return cidlink.Link{}, fmt.Errorf("unsupported document uri %q", uri)
	}
	id, err := cid.Decode(strings.TrimPrefix(uri, Scheme))
	if err != nil {
		return cidlink.Link{}, fmt.Errorf("invalid document uri %q: %w", uri, err)
	}
	return cidlink.Link{Cid: id}, nil
}

// Compute returns the URI the given node would be stored under.
func Compute(node datamodel.Node) (string, error) {
	lsys := cidlink.DefaultLinkSystem()
	lnk, err := lsys.ComputeLink(linkPrototype, node)
	if err != nil {
		return "", err
	}
	return URI(lnk), nil
}
