package mwire

import (
	"io"
	"math/big"
	"sort"

	"github.com/creditmesh/meshnode/ccrypto"
)

// CurrencyBalance pairs a currency with its i128 balance, used inside
// ResetTerms and TokenInfo.
type CurrencyBalance struct {
	Currency ccrypto.Currency
	Balance  *big.Int
}

// sortedBalances returns balances sorted by currency name, giving every
// encoder/hasher of a balance list a single canonical order.
func sortedBalances(balances []CurrencyBalance) []CurrencyBalance {
	out := make([]CurrencyBalance, len(balances))
	copy(out, balances)
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// EncodeBalances writes a canonical (sorted) currency/balance list,
// reused both on the wire and inside TokenInfo/reset-token hashing.
func EncodeBalances(w io.Writer, balances []CurrencyBalance) error {
	sorted := sortedBalances(balances)
	if err := writeUint16(w, uint16(len(sorted))); err != nil {
		return err
	}
	for _, cb := range sorted {
		if err := writeCurrency(w, cb.Currency); err != nil {
			return err
		}
		b := ccrypto.BEBytes16(cb.Balance)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBalances is the inverse of EncodeBalances. Balances are signed
// i128 values.
func DecodeBalances(r io.Reader) ([]CurrencyBalance, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	out := make([]CurrencyBalance, n)
	for i := range out {
		cur, err := readCurrency(r)
		if err != nil {
			return nil, err
		}
		bal, err := readI128(r)
		if err != nil {
			return nil, err
		}
		out[i] = CurrencyBalance{Currency: cur, Balance: bal}
	}
	return out, nil
}

// ResetTerms is the signed agreement a friend offers after declaring
// inconsistency, per spec.md §4.3.
type ResetTerms struct {
	ResetToken           ccrypto.Hash
	InconsistencyCounter uint64
	Balances             []CurrencyBalance
}

func (rt *ResetTerms) Encode(w io.Writer) error {
	if err := writeHash(w, rt.ResetToken); err != nil {
		return err
	}
	if err := writeUint64(w, rt.InconsistencyCounter); err != nil {
		return err
	}
	return EncodeBalances(w, rt.Balances)
}

func (rt *ResetTerms) Decode(r io.Reader) error {
	var err error
	if rt.ResetToken, err = readHash(r); err != nil {
		return err
	}
	if rt.InconsistencyCounter, err = readUint64(r); err != nil {
		return err
	}
	if rt.Balances, err = DecodeBalances(r); err != nil {
		return err
	}
	return nil
}

// MessageType identifies the top-level FriendMessage variant, per
// spec.md §6: "FriendMessage ∈ { MoveTokenRequest(...) | InconsistencyError(...) }".
type MessageType uint16

const (
	MsgMoveTokenRequest   MessageType = 1
	MsgInconsistencyError MessageType = 2
)

// Message is a top-level FriendMessage.
type Message interface {
	Encode(w io.Writer) error
	Decode(r io.Reader) error
	MsgType() MessageType
}

// MoveTokenRequest carries a MoveToken plus a flag telling the peer
// whether we still have more queued to send, per spec.md §4.4 step 4.
type MoveTokenRequest struct {
	MoveToken   *MoveToken
	TokenWanted bool
}

func (m *MoveTokenRequest) MsgType() MessageType { return MsgMoveTokenRequest }

func (m *MoveTokenRequest) Encode(w io.Writer) error {
	if err := m.MoveToken.Encode(w); err != nil {
		return err
	}
	var b byte
	if m.TokenWanted {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func (m *MoveTokenRequest) Decode(r io.Reader) error {
	m.MoveToken = &MoveToken{}
	if err := m.MoveToken.Decode(r); err != nil {
		return err
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	m.TokenWanted = b[0] != 0
	return nil
}

// InconsistencyErrorMsg carries a friend's reset terms.
type InconsistencyErrorMsg struct {
	ResetTerms ResetTerms
}

func (m *InconsistencyErrorMsg) MsgType() MessageType { return MsgInconsistencyError }

func (m *InconsistencyErrorMsg) Encode(w io.Writer) error {
	return m.ResetTerms.Encode(w)
}

func (m *InconsistencyErrorMsg) Decode(r io.Reader) error {
	return m.ResetTerms.Decode(r)
}
