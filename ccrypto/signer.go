package ccrypto

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Signature is a detached 64-byte schnorr signature, matching spec.md §6's
// fixed 64-byte signature field.
type Signature [SignatureSize]byte

// Signer is the capability interface through which the rest of the core
// asks for a signature over a canonical buffer. spec.md §5 places the
// actual cryptographic operation on "a dedicated identity task reached via
// request/response channels"; Signer is that boundary. LocalSigner below
// is an in-process implementation used when no such external task is
// wired up (e.g. in tests, or a single-process deployment).
type Signer interface {
	// Sign returns a signature over the sha512/256 digest of buf, made
	// with the key identified by pubKey.
	Sign(pubKey PublicKey, buf []byte) (Signature, error)
}

// Verifier mirrors Signer for the read side; it never needs access to a
// private key so it is implemented directly by package functions (Verify
// below) as well as satisfied trivially by LocalSigner.
type Verifier interface {
	Verify(pubKey PublicKey, buf []byte, sig Signature) bool
}

// LocalSigner holds a set of local private keys, keyed by their public
// key, and signs/verifies in-process. It satisfies both Signer and
// Verifier so that tests and single-binary deployments can use one
// object for both directions.
type LocalSigner struct {
	keys map[PublicKey]*PrivateKey
}

// NewLocalSigner constructs an empty LocalSigner.
func NewLocalSigner() *LocalSigner {
	return &LocalSigner{keys: make(map[PublicKey]*PrivateKey)}
}

// AddKey registers a private key so the signer can produce signatures
// under its corresponding public key.
func (s *LocalSigner) AddKey(priv *PrivateKey) {
	s.keys[priv.PubKey()] = priv
}

// Sign implements Signer.
func (s *LocalSigner) Sign(pubKey PublicKey, buf []byte) (Signature, error) {
	priv, ok := s.keys[pubKey]
	if !ok {
		return Signature{}, fmt.Errorf("no local key for %s", pubKey)
	}
	digest := Sum512_256(buf)
	sig, err := schnorr.Sign(priv.key, digest[:])
	if err != nil {
		return Signature{}, err
	}
	var out Signature
	copy(out[:], sig.Serialize())
	return out, nil
}

// Verify checks that sig is a valid schnorr signature by pubKey over the
// sha512/256 digest of buf.
func Verify(pubKey PublicKey, buf []byte, sig Signature) bool {
	pk, err := schnorrPubKey(pubKey)
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	digest := Sum512_256(buf)
	return parsed.Verify(digest[:], pk)
}

// Verify implements Verifier on LocalSigner for symmetry with Sign.
func (s *LocalSigner) Verify(pubKey PublicKey, buf []byte, sig Signature) bool {
	return Verify(pubKey, buf, sig)
}

func schnorrPubKey(pubKey PublicKey) (*btcec.PublicKey, error) {
	return schnorr.ParsePubKey(pubKey[:])
}
