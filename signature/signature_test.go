package signature

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	message := []byte(`{"title":"hello"}`)
	sig, err := Sign(message, key)
	require.NoError(t, err)

	addr, err := Recover(message, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	sig[64] -= 27
	addr, err = Recover(message, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestRecoverOtherMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign([]byte("signed"), key)
	require.NoError(t, err)

	addr, err := Recover([]byte("tampered"), sig)
	if err == nil {
		assert.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey), addr)
	}
}

func TestRecoverInvalid(t *testing.T) {
	_, err := Recover([]byte("message"), make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidLength)

	sig := make([]byte, Size)
	sig[64] = 5
	_, err = Recover([]byte("message"), sig)
	assert.Error(t, err)
}

func TestParseProof(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign([]byte("message"), key)
	require.NoError(t, err)

	parsed, err := ParseProof(hexutil.Encode(sig))
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = ParseProof("0x1234")
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = ParseProof("nothex")
	assert.Error(t, err)
}
