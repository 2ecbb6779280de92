package ccrypto

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PublicKeySize is the length in bytes of a serialized public key, as
// carried on the wire (spec.md §6: "public keys are 32 bytes").
const PublicKeySize = 32

// SignatureSize is the length in bytes of a detached signature, as carried
// on the wire (spec.md §6: "signatures are 64 bytes").
const SignatureSize = 64

// PublicKey identifies a node. It is the 32-byte x-only serialization of a
// secp256k1 point, matching the BIP-340/schnorr convention so that the
// 32-byte/64-byte sizes spec.md fixes for public keys and signatures line
// up with a single concrete curve and signature scheme.
type PublicKey [PublicKeySize]byte

// String returns the hex encoding of the public key.
func (p PublicKey) String() string {
	return fmt.Sprintf("%x", p[:])
}

// Less gives PublicKey a total order, used to break ties deterministically
// (spec.md scenario 3: "T_B < T_A lexicographically determines who sends
// first").
func (p PublicKey) Less(other PublicKey) bool {
	for i := range p {
		if p[i] != other[i] {
			return p[i] < other[i]
		}
	}
	return false
}

// PrivateKey wraps a secp256k1 private key for local signing purposes.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// NewPrivateKey generates a fresh private key, standing in for whatever key
// provisioning the out-of-scope identity service performs.
func NewPrivateKey() (*PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes parses a 32-byte scalar into a PrivateKey.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// PubKey returns the public key corresponding to this private key.
func (p *PrivateKey) PubKey() PublicKey {
	return SerializePubKey(p.key.PubKey())
}

// Bytes serializes the private key's 32-byte scalar, the inverse of
// PrivateKeyFromBytes, for durable storage of a node's identity.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// SerializePubKey converts a btcec public key into the wire PublicKey type
// using its x-only (schnorr) serialization.
func SerializePubKey(pk *btcec.PublicKey) PublicKey {
	var out PublicKey
	xBytes := pk.X().Bytes()
	// X() is big-endian, left pad to 32 bytes.
	copy(out[PublicKeySize-len(xBytes):], xBytes)
	return out
}
