package link

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipld/go-car/v2"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/ipld/go-ipld-prime/traversal/selector"
	"github.com/ipld/go-ipld-prime/traversal/selector/builder"
)

// Export writes a CAR containing the DAG starting from the document with the given URI.
func (s *Store) Export(ctx context.Context, uri string, out io.Writer) error {
	lnk, err := ParseURI(uri)
	if err != nil {
		return err
	}
	ssb := builder.NewSelectorSpecBuilder(basicnode.Prototype.Any)
	sel := ssb.ExploreRecursive(selector.RecursionLimitNone(), ssb.ExploreAll(ssb.ExploreRecursiveEdge()))

	w, err := car.NewSelectiveWriter(ctx, &s.lsys, lnk.Cid, sel.Node())
	if err != nil {
		return err
	}
	_, err = w.WriteTo(out)
	return err
}

// Import reads every block of a CAR into the store and returns the URIs of its roots.
//
// Blocks whose content does not match their CID are rejected.
func (s *Store) Import(ctx context.Context, in io.Reader) ([]string, error) {
	br, err := car.NewBlockReader(in)
	if err != nil {
		return nil, err
	}
	for {
		blk, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sum, err := blk.Cid().Prefix().Sum(blk.RawData())
		if err != nil {
			return nil, err
		}
		if !sum.Equals(blk.Cid()) {
			return nil, fmt.Errorf("block %s does not match its content", blk.Cid())
		}
		key := blk.Cid().KeyString()
		if err := s.storage.Put(ctx, key, blk.RawData()); err != nil {
			return nil, err
		}
	}
	roots := make([]string, len(br.Roots))
	for i, r := range br.Roots {
		roots[i] = Scheme + r.String()
	}
	return roots, nil
}
