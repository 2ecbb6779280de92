// Package mwire implements the length-delimited, fixed-width-integer wire
// protocol of spec.md §6: FriendMessage framing, the MoveToken and
// InconsistencyError payloads, and the canonical tag-prefixed encoding of
// each FriendTcOp. The package mirrors lnwire/message.go's
// registry-and-io.Reader/Writer discipline, generalized from Lightning's
// HTLC messages to the funder's credit operations.
package mwire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
)

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func writeU128(w io.Writer, v *big.Int) error {
	b := ccrypto.BEBytes16(v)
	_, err := w.Write(b[:])
	return err
}

func readU128(r io.Reader) (*big.Int, error) {
	var b [16]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b[:]), nil
}

// readI128 decodes a 16-byte two's-complement signed value, the inverse of
// ccrypto.BEBytes16 applied to a negative big.Int.
func readI128(r io.Reader) (*big.Int, error) {
	var b [16]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(b[:])
	if b[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		v.Sub(v, mod)
	}
	return v, nil
}

func writeHash(w io.Writer, h ccrypto.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (ccrypto.Hash, error) {
	var h ccrypto.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

func writeSignature(w io.Writer, s ccrypto.Signature) error {
	_, err := w.Write(s[:])
	return err
}

func readSignature(r io.Reader) (ccrypto.Signature, error) {
	var s ccrypto.Signature
	_, err := io.ReadFull(r, s[:])
	return s, err
}

func writePubKey(w io.Writer, pk ccrypto.PublicKey) error {
	_, err := w.Write(pk[:])
	return err
}

func readPubKey(r io.Reader) (ccrypto.PublicKey, error) {
	var pk ccrypto.PublicKey
	_, err := io.ReadFull(r, pk[:])
	return pk, err
}

func writeCurrency(w io.Writer, c ccrypto.Currency) error {
	if len(c) > 255 {
		return fmt.Errorf("currency name too long: %d", len(c))
	}
	if _, err := w.Write([]byte{byte(len(c))}); err != nil {
		return err
	}
	_, err := io.WriteString(w, string(c))
	return err
}

func readCurrency(r io.Reader) (ccrypto.Currency, error) {
	var l [1]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return "", err
	}
	buf := make([]byte, l[0])
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return ccrypto.Currency(buf), nil
}
