package mwire

import (
	"bytes"
	"io"

	"github.com/creditmesh/meshnode/ccrypto"
)

// MoveToken is the signed batch of operations that transfers the token to
// the peer, per spec.md §3/§4.2/§4.3. OptLocalRelays is nil when the
// sender has nothing new to advertise.
type MoveToken struct {
	Operations     []Op
	OptLocalRelays []RelayAddress
	OldToken       ccrypto.Signature
	InfoHash       ccrypto.Hash
	RandNonce      ccrypto.Hash
	NewToken       ccrypto.Signature
}

// Encode writes the full MoveToken, including NewToken. Use
// EncodeUnsigned to get the bytes that must be signed to produce
// NewToken in the first place.
func (m *MoveToken) Encode(w io.Writer) error {
	if err := m.EncodeUnsigned(w); err != nil {
		return err
	}
	return writeSignature(w, m.NewToken)
}

// EncodeUnsigned writes every MoveToken field except NewToken.
func (m *MoveToken) EncodeUnsigned(w io.Writer) error {
	if err := writeSignature(w, m.OldToken); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(m.Operations))); err != nil {
		return err
	}
	for _, op := range m.Operations {
		if err := EncodeOp(w, op); err != nil {
			return err
		}
	}
	if err := writeRelayList(w, m.OptLocalRelays); err != nil {
		return err
	}
	if err := writeHash(w, m.InfoHash); err != nil {
		return err
	}
	return writeHash(w, m.RandNonce)
}

// Decode parses a full, signed MoveToken.
func (m *MoveToken) Decode(r io.Reader) error {
	var err error
	if m.OldToken, err = readSignature(r); err != nil {
		return err
	}
	numOps, err := readUint32(r)
	if err != nil {
		return err
	}
	m.Operations = make([]Op, numOps)
	for i := range m.Operations {
		if m.Operations[i], err = DecodeOp(r); err != nil {
			return err
		}
	}
	if m.OptLocalRelays, err = readRelayList(r); err != nil {
		return err
	}
	if m.InfoHash, err = readHash(r); err != nil {
		return err
	}
	if m.RandNonce, err = readHash(r); err != nil {
		return err
	}
	if m.NewToken, err = readSignature(r); err != nil {
		return err
	}
	return nil
}

// canonicalOpsBytes concatenates each operation's tag-prefixed encoding,
// the canonical(op₁…opₙ) term of prefix_hash.
func (m *MoveToken) canonicalOpsBytes() ([]byte, error) {
	var buf bytes.Buffer
	for _, op := range m.Operations {
		if err := EncodeOp(&buf, op); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// canonicalRelaysBytes returns canonical(opt_local_relays).
func (m *MoveToken) canonicalRelaysBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRelayList(&buf, m.OptLocalRelays); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PrefixHash computes prefix_hash(M) per spec.md §4.3 step 1.
func (m *MoveToken) PrefixHash() (ccrypto.Hash, error) {
	opsBuf, err := m.canonicalOpsBytes()
	if err != nil {
		return ccrypto.Hash{}, err
	}
	relaysBuf, err := m.canonicalRelaysBytes()
	if err != nil {
		return ccrypto.Hash{}, err
	}
	return ccrypto.MoveTokenPrefixHash(m.OldToken, uint32(len(m.Operations)), opsBuf, relaysBuf), nil
}

// SignatureBuff computes the buffer that must be signed/verified to
// produce/check NewToken, per spec.md §4.3 step 1.
func (m *MoveToken) SignatureBuff() ([]byte, error) {
	prefix, err := m.PrefixHash()
	if err != nil {
		return nil, err
	}
	return ccrypto.MoveTokenSignatureBuff(prefix, m.InfoHash, m.RandNonce), nil
}
