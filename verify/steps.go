package verify

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/codec"
	"github.com/nasdf/quorum/did"
	"github.com/nasdf/quorum/document"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/sets"
	"github.com/nasdf/quorum/signature"

	"github.com/ethereum/go-ethereum/common"
)

// state is shared by the steps verifying a single document.
type state struct {
	kind   document.Kind
	raw    map[string]any
	top    bool
	logger *slog.Logger

	doc       document.Document
	community *document.Community
	proposal  *document.Proposal
}

type step func(ctx context.Context, st *state) error

// steps returns the verification steps in the order they must run.
func (v *Verifier) steps() []step {
	return []step{
		v.checkSchema,
		v.checkSignature,
		v.checkBinding,
		v.checkFreshness,
		v.checkParents,
	}
}

func (v *Verifier) checkSchema(ctx context.Context, st *state) error {
	doc, err := document.Parse(st.kind, st.raw)
	if err != nil {
		return err
	}
	st.doc = doc
	return nil
}

func (v *Verifier) checkSignature(ctx context.Context, st *state) error {
	author := st.doc.Signer()
	if !common.IsHexAddress(author.Address) {
		return fault.New(fault.SchemaError, "author.address", "invalid address %q", author.Address)
	}
	sig, err := signature.ParseProof(author.Proof)
	if err != nil {
		return fault.Wrap(fault.InvalidSignature, "author.proof", err)
	}
	payload, err := codec.SigningPayload(st.raw)
	if err != nil {
		return fault.Wrap(fault.SchemaError, "", err)
	}
	signer, err := v.recover(payload, sig)
	if err != nil {
		return fault.Wrap(fault.InvalidSignature, "author.proof", err)
	}
	if signer != common.HexToAddress(author.Address) {
		return fault.New(fault.InvalidSignature, "author.proof", "signed by %s not %s", signer.Hex(), author.Address)
	}
	return nil
}

func (v *Verifier) checkBinding(ctx context.Context, st *state) error {
	author := st.doc.Signer()
	resolved, err := v.resolver.Resolve(ctx, author.DID, author.Snapshots())
	if err != nil {
		return fault.Within("author", err)
	}
	claimed := did.Address{CoinType: author.CoinType, Address: author.Address}
	if !claimed.Equal(resolved) {
		return fault.New(fault.DidMismatch, "author.address", "%s resolves to %s on coin type %s", author.DID, resolved.Address, resolved.CoinType)
	}
	return nil
}

func (v *Verifier) checkFreshness(ctx context.Context, st *state) error {
	if !st.top {
		return nil
	}
	author := st.doc.Signer()
	if err := v.snapshots.CheckFresh(ctx, author.CoinType, author.Snapshot); err != nil {
		return fault.Within("author.snapshot", err)
	}
	if p, ok := st.doc.(*document.Proposal); ok {
		if err := v.snapshots.CheckFreshAll(ctx, p.Snapshots); err != nil {
			return fault.Within("snapshots", err)
		}
	}
	return nil
}

func (v *Verifier) checkParents(ctx context.Context, st *state) error {
	switch doc := st.doc.(type) {
	case *document.Community:
		return v.checkCommunity(doc)
	case *document.Proposal:
		return v.checkProposal(ctx, st, doc)
	case *document.Option:
		return v.checkOption(ctx, st, doc)
	case *document.Vote:
		return v.checkVote(ctx, st, doc)
	default:
		return fault.New(fault.SchemaError, "", "unknown document %T", st.doc)
	}
}

func (v *Verifier) checkCommunity(doc *document.Community) error {
	seen := make(map[string]struct{}, len(doc.Groups))
	for i, group := range doc.Groups {
		path := fmt.Sprintf("groups[%d]", i)
		if _, ok := seen[group.ID]; ok {
			return fault.New(fault.SchemaError, path+".id", "duplicate group id %q", group.ID)
		}
		seen[group.ID] = struct{}{}

		if err := v.checkGroupSets(&group); err != nil {
			return fault.Within(path, err)
		}
	}
	return nil
}

func (v *Verifier) checkProposal(ctx context.Context, st *state, doc *document.Proposal) error {
	parent, err := v.parent(ctx, st, document.KindCommunity, "community", doc.Community)
	if err != nil {
		return err
	}
	st.community = parent.doc.(*document.Community)

	group, ok := st.community.Group(doc.Group)
	if !ok {
		return fault.New(fault.SchemaError, "group", "community has no group %q", doc.Group)
	}
	required, err := v.groupCoinTypes(group)
	if err != nil {
		return fault.Within("group", err)
	}
	for _, c := range required {
		if _, ok := doc.Snapshots.Height(c); !ok {
			return fault.New(fault.SchemaError, "snapshots", "missing snapshot for coin type %s", c)
		}
	}
	allowed, err := v.evaluator.EvaluateBoolean(ctx, group.Permission.Proposing, doc.Author.DID, doc.Snapshots)
	if err != nil {
		return fault.Within("group.permission.proposing", err)
	}
	if !allowed {
		return fault.New(fault.PermissionDenied, "author.did", "%s may not propose in group %q", doc.Author.DID, group.ID)
	}
	return nil
}

func (v *Verifier) checkOption(ctx context.Context, st *state, doc *document.Option) error {
	parent, err := v.parent(ctx, st, document.KindProposal, "proposal", doc.Proposal)
	if err != nil {
		return err
	}
	st.proposal = parent.doc.(*document.Proposal)
	st.community = parent.community

	group, _ := st.community.Group(st.proposal.Group)
	if group.Permission.AddingOption == nil {
		return fault.New(fault.PermissionDenied, "author.did", "group %q does not allow adding options", group.ID)
	}
	allowed, err := v.evaluator.EvaluateBoolean(ctx, group.Permission.AddingOption, doc.Author.DID, st.proposal.Snapshots)
	if err != nil {
		return fault.Within("group.permission.adding_option", err)
	}
	if !allowed {
		return fault.New(fault.PermissionDenied, "author.did", "%s may not add options in group %q", doc.Author.DID, group.ID)
	}
	return nil
}

func (v *Verifier) checkVote(ctx context.Context, st *state, doc *document.Vote) error {
	parent, err := v.parent(ctx, st, document.KindProposal, "proposal", doc.Proposal)
	if err != nil {
		return err
	}
	st.proposal = parent.doc.(*document.Proposal)
	st.community = parent.community

	for option := range doc.Powers {
		if !st.proposal.HasOption(option) {
			return fault.New(fault.SchemaError, "powers."+option, "proposal has no option %q", option)
		}
	}
	if st.proposal.VotingType == document.SingleChoice && len(doc.Powers) != 1 {
		return fault.New(fault.SchemaError, "powers", "single choice vote must have one option got %d", len(doc.Powers))
	}

	group, _ := st.community.Group(st.proposal.Group)
	weight, err := v.evaluator.EvaluateNumber(ctx, group.Permission.Voting, doc.Author.DID, st.proposal.Snapshots)
	if err != nil {
		return fault.Within("group.permission.voting", err)
	}
	if !samePower(weight, doc.TotalPower) {
		return fault.New(fault.VotingPowerMismatch, "total_power", "claimed %v but %s has %v", doc.TotalPower, doc.Author.DID, weight)
	}

	var sum float64
	for _, power := range doc.Powers {
		sum += power
	}
	if !samePower(sum, doc.TotalPower) {
		return fault.New(fault.SchemaError, "powers", "powers sum to %v not %v", sum, doc.TotalPower)
	}
	return nil
}

// checkGroupSets rejects permission sets that could never be evaluated as their kind.
func (v *Verifier) checkGroupSets(group *document.Group) error {
	perm := group.Permission
	if err := v.evaluator.CheckBoolean(perm.Proposing); err != nil {
		return fault.Within("permission.proposing", err)
	}
	if perm.AddingOption != nil {
		if err := v.evaluator.CheckBoolean(perm.AddingOption); err != nil {
			return fault.Within("permission.adding_option", err)
		}
	}
	if err := v.evaluator.CheckNumber(perm.Voting); err != nil {
		return fault.Within("permission.voting", err)
	}
	return nil
}

// groupCoinTypes returns the chains read by any of the group sets.
func (v *Verifier) groupCoinTypes(group *document.Group) ([]chain.CoinType, error) {
	perm := group.Permission
	named := []struct {
		path string
		node sets.Node
	}{
		{"permission.proposing", perm.Proposing},
		{"permission.adding_option", perm.AddingOption},
		{"permission.voting", perm.Voting},
	}
	var out []chain.CoinType
	for _, n := range named {
		if n.node == nil {
			continue
		}
		coinTypes, err := v.evaluator.RequiredCoinTypes(n.node)
		if err != nil {
			return nil, fault.Within(n.path, err)
		}
		out = append(out, coinTypes.ToSlice()...)
	}
	return out, nil
}

// samePower compares voting powers allowing for float rounding of decimal input.
func samePower(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-9*scale
}
