package quorum

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/codec"
	"github.com/nasdf/quorum/config"
	"github.com/nasdf/quorum/did"
	"github.com/nasdf/quorum/document"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/signature"
	"github.com/nasdf/quorum/snapshot"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tip int64

func (t tip) BlockNumber(ctx context.Context) (*big.Int, error) {
	return big.NewInt(int64(t)), nil
}

type keyResolver map[string]*ecdsa.PrivateKey

func (r keyResolver) Resolve(ctx context.Context, name string, snapshots snapshot.Map) (did.Address, error) {
	key, ok := r[name]
	if !ok {
		return did.Address{}, fault.Wrap(fault.DidMismatch, "did", did.ErrNotRegistered)
	}
	return did.Address{CoinType: chain.CKB, Address: crypto.PubkeyToAddress(key.PublicKey).Hex()}, nil
}

func (r keyResolver) RequiredCoinTypes() []chain.CoinType {
	return []chain.CoinType{chain.CKB}
}

func sign(t *testing.T, key *ecdsa.PrivateKey, name string, raw map[string]any) map[string]any {
	payload, err := codec.SigningPayload(raw)
	require.NoError(t, err)
	sig, err := signature.Sign(payload, key)
	require.NoError(t, err)
	raw["author"] = map[string]any{
		"did":       name,
		"snapshot":  "500",
		"coin_type": int64(chain.CKB),
		"address":   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		"proof":     hexutil.Encode(sig),
	}
	return raw
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	keys := keyResolver{}
	for _, name := range []string{"alice.bit", "bob.bit"} {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[name] = key
	}

	q, err := Open(ctx, config.Default(),
		WithChain(chain.CKB, tip(500)),
		WithResolver(".bit", keys))
	require.NoError(t, err)
	defer q.Close()

	community := sign(t, keys["alice.bit"], "alice.bit", map[string]any{
		"name": "club",
		"groups": []any{map[string]any{
			"id":   "core",
			"name": "Core",
			"permission": map[string]any{
				"proposing": map[string]any{"function": "is_did", "arguments": []any{[]any{"bob.bit"}}},
				"voting": map[string]any{
					"operation": "max",
					"operands": []any{
						map[string]any{"function": "static_power", "arguments": []any{int64(3), []any{"bob.bit"}}},
						map[string]any{"function": "sub_did_power", "arguments": []any{int64(1), []any{"bit"}}},
					},
				},
			},
		}},
	})
	communityURI, err := q.Submit(ctx, document.KindCommunity, community)
	require.NoError(t, err)

	stored, err := q.Get(ctx, communityURI)
	require.NoError(t, err)
	assert.Equal(t, "club", stored["name"])

	proposal := sign(t, keys["bob.bit"], "bob.bit", map[string]any{
		"community":   communityURI,
		"group":       "core",
		"title":       "Budget",
		"voting_type": "approval",
		"options":     []any{"yes", "no"},
		"snapshots":   map[string]any{"309": "500"},
	})
	proposalURI, err := q.Submit(ctx, document.KindProposal, proposal)
	require.NoError(t, err)

	rejected := sign(t, keys["alice.bit"], "alice.bit", map[string]any{
		"proposal":    proposalURI,
		"powers":      map[string]any{"yes": "3"},
		"total_power": "3",
	})
	_, err = q.Submit(ctx, document.KindVote, rejected)
	require.ErrorIs(t, err, fault.VotingPowerMismatch)

	vote := sign(t, keys["bob.bit"], "bob.bit", map[string]any{
		"proposal":    proposalURI,
		"powers":      map[string]any{"yes": "2", "no": "1"},
		"total_power": "3",
	})
	voteURI, err := q.Submit(ctx, document.KindVote, vote)
	require.NoError(t, err)

	has, err := q.Store().Has(ctx, voteURI)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSubmitMissingParent(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keys := keyResolver{"bob.bit": key}

	q, err := Open(ctx, config.Default(),
		WithChain(chain.CKB, tip(500)),
		WithResolver(".bit", keys))
	require.NoError(t, err)

	option := sign(t, key, "bob.bit", map[string]any{"proposal": "not a uri", "title": "maybe"})
	_, err = q.Submit(ctx, document.KindOption, option)
	require.ErrorIs(t, err, fault.SchemaError)
	assert.Equal(t, "proposal", fault.PathOf(err))
}

func TestOpenResolver(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keys := keyResolver{"bob.bit": key}

	q, err := Open(ctx, config.Default(),
		WithChain(chain.CKB, tip(500)),
		WithResolver(".bit", keys))
	require.NoError(t, err)
	defer q.Close()

	assert.Equal(t, []string{".bit"}, q.Suffixes())

	snapshots := snapshot.Map{chain.CKB: big.NewInt(500)}
	addr, err := q.Resolver().Resolve(ctx, "bob.bit", snapshots)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr.Address)

	_, err = q.Resolver().Resolve(ctx, "bob.eth", snapshots)
	require.ErrorIs(t, err, fault.UnsupportedDid)
}

func TestOpenInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Concurrency = 0
	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenLevelDB(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = t.TempDir()

	q, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, q.Close())
}
