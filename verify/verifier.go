// Package verify checks signed documents and the chain of documents they refer to.
package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/nasdf/quorum/did"
	"github.com/nasdf/quorum/document"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/link"
	"github.com/nasdf/quorum/node"
	"github.com/nasdf/quorum/sets"
	"github.com/nasdf/quorum/signature"
	"github.com/nasdf/quorum/snapshot"

	"github.com/google/uuid"
)

// ErrNotFound is returned by a Fetcher when no document has the requested URI.
var ErrNotFound = errors.New("document not found")

// Fetcher loads previously accepted documents.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (map[string]any, error)
}

// Accepted is a document that passed every verification step.
type Accepted struct {
	Kind     document.Kind
	URI      string
	Document document.Document
	// Raw is the decoded form the signature was checked against.
	Raw map[string]any
}

type Verifier struct {
	fetcher   Fetcher
	resolver  did.Resolver
	snapshots *snapshot.Service
	evaluator *sets.Evaluator
	recover   signature.Recoverer
	logger    *slog.Logger
}

type Option func(*Verifier)

// WithLogger sets the logger accepted and rejected documents are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithRecoverer replaces the signature recovery function.
func WithRecoverer(recover signature.Recoverer) Option {
	return func(v *Verifier) {
		v.recover = recover
	}
}

// New returns a Verifier reading parents from fetcher.
func New(fetcher Fetcher, resolver did.Resolver, snapshots *snapshot.Service, evaluator *sets.Evaluator, opts ...Option) *Verifier {
	v := &Verifier{
		fetcher:   fetcher,
		resolver:  resolver,
		snapshots: snapshots,
		evaluator: evaluator,
		recover:   signature.Recover,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs every verification step on a submitted document.
//
// Parent documents are verified again except for snapshot freshness.
func (v *Verifier) Verify(ctx context.Context, kind document.Kind, raw map[string]any) (*Accepted, error) {
	logger := v.logger.With("request", uuid.NewString(), "kind", kind)

	st, err := v.run(ctx, kind, raw, true, logger)
	if err != nil {
		logger.Warn("document rejected", "reason", reason(err), "path", fault.PathOf(err), "err", err)
		return nil, err
	}
	n, err := node.Build(raw)
	if err != nil {
		return nil, err
	}
	uri, err := link.Compute(n)
	if err != nil {
		return nil, err
	}
	logger.Info("document accepted", "uri", uri, "did", st.doc.Signer().DID)
	return &Accepted{Kind: kind, URI: uri, Document: st.doc, Raw: raw}, nil
}

func (v *Verifier) run(ctx context.Context, kind document.Kind, raw map[string]any, top bool, logger *slog.Logger) (*state, error) {
	st := &state{kind: kind, raw: raw, top: top, logger: logger}
	for _, s := range v.steps() {
		if err := ctx.Err(); err != nil {
			return nil, fault.Upstream(err)
		}
		if err := s(ctx, st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// parent fetches and verifies the document referenced by field.
func (v *Verifier) parent(ctx context.Context, st *state, kind document.Kind, field, uri string) (*state, error) {
	raw, err := v.fetcher.Fetch(ctx, uri)
	if errors.Is(err, ErrNotFound) {
		return nil, fault.Wrap(fault.SchemaError, field, err)
	}
	if err != nil {
		return nil, fault.Within(field, fault.Upstream(err))
	}
	st.logger.Debug("verifying parent", "parent", kind, "uri", uri)
	parent, err := v.run(ctx, kind, raw, false, st.logger)
	if err != nil {
		return nil, fault.Within(field, err)
	}
	return parent, nil
}

func reason(err error) string {
	if kind := fault.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal"
}
