// Package signature signs and authenticates documents with Ethereum personal-sign signatures.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Size is the length of a [R || S || V] signature.
const Size = 65

var ErrInvalidLength = errors.New("signature must be 65 bytes")

// Recoverer returns the address whose key produced sig over message.
type Recoverer func(message, sig []byte) (common.Address, error)

// Hash returns the digest signed for message, keccak256 of the EIP-191 prefixed message.
func Hash(message []byte) []byte {
	return accounts.TextHash(message)
}

// Recover returns the address whose key produced sig over message.
//
// The recovery id in the last byte may be 0, 1, 27 or 28.
func Recover(message, sig []byte) (common.Address, error) {
	if len(sig) != Size {
		return common.Address{}, ErrInvalidLength
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[64])
	}
	compact := make([]byte, Size)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := secpecdsa.RecoverCompact(compact, Hash(message))
	if err != nil {
		return common.Address{}, err
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress returns the Ethereum address of the public key.
func PubkeyToAddress(pub *secp256k1.PublicKey) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pub.SerializeUncompressed()[1:])[12:])
}

// Sign signs message with key and returns [R || S || V] with V of 27 or 28.
func Sign(message []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(Hash(message), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// ParseProof decodes a 0x prefixed hex signature.
func ParseProof(proof string) ([]byte, error) {
	sig, err := hexutil.Decode(proof)
	if err != nil {
		return nil, err
	}
	if len(sig) != Size {
		return nil, ErrInvalidLength
	}
	return sig, nil
}
