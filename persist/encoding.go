package persist

import (
	"encoding/binary"
	"io"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
)

// The mutation log's on-disk encoding is deliberately independent of
// mwire's wire format: mwire.EncodeOp/DecodeOp already cover the
// FriendTcOp payloads recorded by ApplyOpMutation, and this file supplies
// the same fixed-width-integer/length-prefixed discipline (see
// mwire/encoding.go) for the handful of additional fields -- friend
// names, rates, currency balances -- the rest of the mutation log needs.

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

func writeBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	l, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeCurrency(w io.Writer, c ccrypto.Currency) error {
	return writeString(w, string(c))
}

func readCurrency(r io.Reader) (ccrypto.Currency, error) {
	s, err := readString(r)
	return ccrypto.Currency(s), err
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

func writeHash(w io.Writer, h ccrypto.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (ccrypto.Hash, error) {
	var h ccrypto.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

// writeSignedBig encodes an arbitrary-precision signed integer as a sign
// byte followed by a length-prefixed big-endian magnitude, wide enough for
// any balance this system will ever carry (unlike mwire's wire format,
// the mutation log has no fixed 128-bit ceiling to respect).
func writeSignedBig(w io.Writer, v *big.Int) error {
	neg := v.Sign() < 0
	mag := new(big.Int).Abs(v).Bytes()
	if err := writeBool(w, neg); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(mag))); err != nil {
		return err
	}
	_, err := w.Write(mag)
	return err
}

func readSignedBig(r io.Reader) (*big.Int, error) {
	neg, err := readBool(r)
	if err != nil {
		return nil, err
	}
	l, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(buf)
	if neg {
		v.Neg(v)
	}
	return v, nil
}
