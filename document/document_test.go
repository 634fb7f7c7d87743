package document

import (
	"math/big"
	"testing"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/sets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawAuthor() map[string]any {
	return map[string]any{
		"did":       "alice.bit",
		"snapshot":  "1200",
		"coin_type": int64(309),
		"address":   "0x0000000000000000000000000000000000000001",
		"proof":     "0x00",
	}
}

func isDID(dids ...any) map[string]any {
	return map[string]any{"function": "is_did", "arguments": []any{dids}}
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("Proposal")
	require.NoError(t, err)
	assert.Equal(t, KindProposal, kind)
	assert.Equal(t, "Proposal", kind.TypeName())

	_, err = ParseKind("ballot")
	require.Error(t, err)
}

func TestParseCommunity(t *testing.T) {
	raw := map[string]any{
		"author": rawAuthor(),
		"name":   "club",
		"groups": []any{
			map[string]any{
				"id":   "core",
				"name": "Core",
				"permission": map[string]any{
					"proposing": isDID("alice.bit"),
					"voting": map[string]any{
						"operation": "sum",
						"operands": []any{
							map[string]any{"function": "static_power", "arguments": []any{int64(1), []any{"alice.bit"}}},
						},
					},
				},
			},
		},
	}
	doc, err := Parse(KindCommunity, raw)
	require.NoError(t, err)

	community := doc.(*Community)
	assert.Equal(t, KindCommunity, community.Kind())
	assert.Equal(t, "alice.bit", community.Signer().DID)
	assert.Equal(t, chain.CKB, community.Author.CoinType)
	assert.Equal(t, big.NewInt(1200), community.Author.Snapshot)

	group, ok := community.Group("core")
	require.True(t, ok)
	assert.Nil(t, group.Permission.AddingOption)
	require.IsType(t, &sets.Operation{}, group.Permission.Voting)
	assert.Equal(t, sets.Sum, group.Permission.Voting.(*sets.Operation).Operator)

	_, ok = community.Group("missing")
	assert.False(t, ok)
}

func TestParseCommunityBadSets(t *testing.T) {
	raw := map[string]any{
		"author": rawAuthor(),
		"name":   "club",
		"groups": []any{
			map[string]any{
				"id":   "core",
				"name": "Core",
				"permission": map[string]any{
					"proposing": map[string]any{"operation": "and", "operands": []any{}},
					"voting":    isDID("alice.bit"),
				},
			},
		},
	}
	_, err := Parse(KindCommunity, raw)
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "groups[0].permission.proposing.operands", fault.PathOf(err))
}

func proposal() map[string]any {
	return map[string]any{
		"author":      rawAuthor(),
		"community":   "ipfs://community",
		"group":       "core",
		"title":       "Budget",
		"voting_type": "single",
		"options":     []any{"yes", "no"},
		"snapshots":   map[string]any{"60": "17000000", "309": "1200"},
	}
}

func TestParseProposal(t *testing.T) {
	doc, err := Parse(KindProposal, proposal())
	require.NoError(t, err)

	p := doc.(*Proposal)
	assert.Equal(t, SingleChoice, p.VotingType)
	assert.True(t, p.HasOption("yes"))
	assert.False(t, p.HasOption("maybe"))
	assert.Equal(t, []chain.CoinType{chain.ETH, chain.CKB}, p.Snapshots.CoinTypes())
	height, ok := p.Snapshots.Height(chain.ETH)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(17000000), height)
}

func TestParseProposalVotingType(t *testing.T) {
	raw := proposal()
	raw["voting_type"] = "SINGLE"
	_, err := Parse(KindProposal, raw)
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "voting_type", fault.PathOf(err))

	raw["voting_type"] = "ranked"
	_, err = Parse(KindProposal, raw)
	require.ErrorIs(t, err, fault.SchemaError)
}

func TestParseProposalDuplicateOption(t *testing.T) {
	raw := proposal()
	raw["options"] = []any{"yes", "yes"}
	_, err := Parse(KindProposal, raw)
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "options[1]", fault.PathOf(err))
}

func TestParseProposalSnapshots(t *testing.T) {
	raw := proposal()
	raw["snapshots"] = map[string]any{"60": "-1"}
	_, err := Parse(KindProposal, raw)
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "snapshots", fault.PathOf(err))
}

func TestParseVote(t *testing.T) {
	raw := map[string]any{
		"author":      rawAuthor(),
		"proposal":    "ipfs://proposal",
		"powers":      map[string]any{"yes": "1.5", "no": int64(2)},
		"total_power": "3.5",
	}
	doc, err := Parse(KindVote, raw)
	require.NoError(t, err)

	v := doc.(*Vote)
	assert.Equal(t, map[string]float64{"yes": 1.5, "no": 2}, v.Powers)
	assert.Equal(t, 3.5, v.TotalPower)
}

func TestParseVoteNegativePower(t *testing.T) {
	raw := map[string]any{
		"author":      rawAuthor(),
		"proposal":    "ipfs://proposal",
		"powers":      map[string]any{"yes": "-1"},
		"total_power": "1",
	}
	_, err := Parse(KindVote, raw)
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "powers.yes", fault.PathOf(err))
}

func TestParseMissingAuthor(t *testing.T) {
	_, err := Parse(KindOption, map[string]any{"proposal": "ipfs://p", "title": "x"})
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "author", fault.PathOf(err))
}

func TestParseAuthorSnapshot(t *testing.T) {
	a := rawAuthor()
	a["snapshot"] = "latest"
	_, err := Parse(KindOption, map[string]any{"author": a, "proposal": "ipfs://p", "title": "x"})
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "author.snapshot", fault.PathOf(err))
}
