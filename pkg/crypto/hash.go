// Package crypto provides cryptographic primitives for the chain state
// engine: hashing and signature verification.
package crypto

import (
	"github.com/shurium/shurium-node/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// Hash160 computes the short hash used to identify public keys and redeem
// scripts inside locking scripts: BLAKE3(data)[:20].
func Hash160(data []byte) [types.AddressSize]byte {
	h := Hash(data)
	var out [types.AddressSize]byte
	copy(out[:], h[:types.AddressSize])
	return out
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	return types.Address(Hash160(pubKey))
}

// HashConcat hashes the concatenation of two hashes.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
