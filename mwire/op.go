package mwire

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
)

// OpTag is the one-byte tag prefixing every encoded FriendTcOp, per
// spec.md §4.6 ("canonical(op) is a tag-prefixed fixed-layout encoding").
type OpTag byte

const (
	TagEnableRequests    OpTag = 1
	TagDisableRequests   OpTag = 2
	TagSetRemoteMaxDebt  OpTag = 3
	TagRequestSendFunds  OpTag = 4
	TagResponseSendFunds OpTag = 5
	TagCancelSendFunds   OpTag = 6
	TagCollectSendFunds  OpTag = 7
)

// Op is a wire-encodable FriendTcOp. Every op names the currency of the
// mutual-credit unit it targets, since a single MoveToken may carry
// operations across every currency two friends have activated (spec.md
// §3: "a mapping currency -> mutual-credit unit"). ToCredit converts it
// into the domain-level creditunit.Op that actually mutates that unit.
type Op interface {
	Tag() OpTag
	Currency() ccrypto.Currency
	Encode(w io.Writer) error
	ToCredit() (creditunit.Op, error)
	decode(r io.Reader) error
}

// EncodeOp serializes op as tag-byte ‖ currency ‖ payload, the exact bytes
// that feed into prefix_hash's canonical(op) term.
func EncodeOp(w io.Writer, op Op) error {
	if _, err := w.Write([]byte{byte(op.Tag())}); err != nil {
		return err
	}
	if err := writeCurrency(w, op.Currency()); err != nil {
		return err
	}
	return op.Encode(w)
}

// DecodeOp reads one tag-prefixed operation from r.
func DecodeOp(r io.Reader) (Op, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, err
	}
	tag := OpTag(tagBuf[0])

	currency, err := readCurrency(r)
	if err != nil {
		return nil, err
	}

	var op Op
	switch tag {
	case TagEnableRequests:
		op = &EnableRequestsOp{CurrencyField: currency}
	case TagDisableRequests:
		op = &DisableRequestsOp{CurrencyField: currency}
	case TagSetRemoteMaxDebt:
		op = &SetRemoteMaxDebtOp{CurrencyField: currency, X: big.NewInt(0)}
	case TagRequestSendFunds:
		op = &RequestSendFundsOp{CurrencyField: currency}
	case TagResponseSendFunds:
		op = &ResponseSendFundsOp{CurrencyField: currency}
	case TagCancelSendFunds:
		op = &CancelSendFundsOp{CurrencyField: currency}
	case TagCollectSendFunds:
		op = &CollectSendFundsOp{CurrencyField: currency}
	default:
		return nil, fmt.Errorf("unknown op tag %d", tag)
	}

	if err := op.decode(r); err != nil {
		return nil, err
	}
	return op, nil
}

// EncodedOpBytes returns the tag-prefixed encoding of op as a standalone
// byte slice: the same bytes EncodeOp writes for each op of the
// canonical(op₁…opₙ) concatenation in prefix_hash.
func EncodedOpBytes(op Op) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeOp(&buf, op); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- EnableRequests / DisableRequests ---

type EnableRequestsOp struct {
	CurrencyField ccrypto.Currency
}

func (op *EnableRequestsOp) Tag() OpTag                 { return TagEnableRequests }
func (op *EnableRequestsOp) Currency() ccrypto.Currency  { return op.CurrencyField }
func (op *EnableRequestsOp) Encode(io.Writer) error      { return nil }
func (op *EnableRequestsOp) decode(io.Reader) error      { return nil }
func (op *EnableRequestsOp) ToCredit() (creditunit.Op, error) {
	return creditunit.EnableRequestsOp{}, nil
}

type DisableRequestsOp struct {
	CurrencyField ccrypto.Currency
}

func (op *DisableRequestsOp) Tag() OpTag                { return TagDisableRequests }
func (op *DisableRequestsOp) Currency() ccrypto.Currency { return op.CurrencyField }
func (op *DisableRequestsOp) Encode(io.Writer) error     { return nil }
func (op *DisableRequestsOp) decode(io.Reader) error     { return nil }
func (op *DisableRequestsOp) ToCredit() (creditunit.Op, error) {
	return creditunit.DisableRequestsOp{}, nil
}

// --- SetRemoteMaxDebt ---

type SetRemoteMaxDebtOp struct {
	CurrencyField ccrypto.Currency
	X             *big.Int
}

func (op *SetRemoteMaxDebtOp) Tag() OpTag                { return TagSetRemoteMaxDebt }
func (op *SetRemoteMaxDebtOp) Currency() ccrypto.Currency { return op.CurrencyField }

func (op *SetRemoteMaxDebtOp) Encode(w io.Writer) error {
	return writeU128(w, op.X)
}

func (op *SetRemoteMaxDebtOp) decode(r io.Reader) error {
	x, err := readU128(r)
	if err != nil {
		return err
	}
	op.X = x
	return nil
}

func (op *SetRemoteMaxDebtOp) ToCredit() (creditunit.Op, error) {
	return creditunit.SetRemoteMaxDebtOp{X: op.X}, nil
}

// --- RequestSendFunds ---

type RequestSendFundsOp struct {
	CurrencyField    ccrypto.Currency
	RequestID        ccrypto.Hash
	Route            []ccrypto.PublicKey
	SrcHashedLock    ccrypto.HashedLock
	DestPayment      *big.Int
	TotalDestPayment *big.Int
	InvoiceID        ccrypto.Hash
	LeftFees         *big.Int
}

func (op *RequestSendFundsOp) Tag() OpTag                { return TagRequestSendFunds }
func (op *RequestSendFundsOp) Currency() ccrypto.Currency { return op.CurrencyField }

func (op *RequestSendFundsOp) Encode(w io.Writer) error {
	if err := writeHash(w, op.RequestID); err != nil {
		return err
	}
	if len(op.Route) > creditunit.MaxRouteLen {
		return fmt.Errorf("route too long: %d", len(op.Route))
	}
	if _, err := w.Write([]byte{byte(len(op.Route))}); err != nil {
		return err
	}
	for _, pk := range op.Route {
		if err := writePubKey(w, pk); err != nil {
			return err
		}
	}
	if err := writeHash(w, op.SrcHashedLock); err != nil {
		return err
	}
	if err := writeU128(w, op.DestPayment); err != nil {
		return err
	}
	if err := writeU128(w, op.TotalDestPayment); err != nil {
		return err
	}
	if err := writeHash(w, op.InvoiceID); err != nil {
		return err
	}
	return writeU128(w, op.LeftFees)
}

func (op *RequestSendFundsOp) decode(r io.Reader) error {
	var err error
	if op.RequestID, err = readHash(r); err != nil {
		return err
	}
	var n [1]byte
	if _, err = io.ReadFull(r, n[:]); err != nil {
		return err
	}
	op.Route = make([]ccrypto.PublicKey, n[0])
	for i := range op.Route {
		if op.Route[i], err = readPubKey(r); err != nil {
			return err
		}
	}
	if op.SrcHashedLock, err = readHash(r); err != nil {
		return err
	}
	if op.DestPayment, err = readU128(r); err != nil {
		return err
	}
	if op.TotalDestPayment, err = readU128(r); err != nil {
		return err
	}
	if op.InvoiceID, err = readHash(r); err != nil {
		return err
	}
	if op.LeftFees, err = readU128(r); err != nil {
		return err
	}
	return nil
}

func (op *RequestSendFundsOp) ToCredit() (creditunit.Op, error) {
	return creditunit.RequestSendFundsOp{Args: creditunit.RequestSendFundsArgs{
		RequestID:        op.RequestID,
		Route:            creditunit.Route(op.Route),
		SrcHashedLock:    op.SrcHashedLock,
		DestPayment:      op.DestPayment,
		TotalDestPayment: op.TotalDestPayment,
		InvoiceID:        op.InvoiceID,
		LeftFees:         op.LeftFees,
	}}, nil
}

// --- ResponseSendFunds ---

type ResponseSendFundsOp struct {
	CurrencyField  ccrypto.Currency
	RequestID      ccrypto.Hash
	DestHashedLock ccrypto.HashedLock
	RandNonce      ccrypto.Hash
	Signature      ccrypto.Signature
}

func (op *ResponseSendFundsOp) Tag() OpTag                { return TagResponseSendFunds }
func (op *ResponseSendFundsOp) Currency() ccrypto.Currency { return op.CurrencyField }

func (op *ResponseSendFundsOp) Encode(w io.Writer) error {
	if err := writeHash(w, op.RequestID); err != nil {
		return err
	}
	if err := writeHash(w, op.DestHashedLock); err != nil {
		return err
	}
	if err := writeHash(w, op.RandNonce); err != nil {
		return err
	}
	return writeSignature(w, op.Signature)
}

func (op *ResponseSendFundsOp) decode(r io.Reader) error {
	var err error
	if op.RequestID, err = readHash(r); err != nil {
		return err
	}
	if op.DestHashedLock, err = readHash(r); err != nil {
		return err
	}
	if op.RandNonce, err = readHash(r); err != nil {
		return err
	}
	if op.Signature, err = readSignature(r); err != nil {
		return err
	}
	return nil
}

func (op *ResponseSendFundsOp) ToCredit() (creditunit.Op, error) {
	return creditunit.ResponseSendFundsOp{Args: creditunit.ResponseSendFundsArgs{
		RequestID:      op.RequestID,
		DestHashedLock: op.DestHashedLock,
		RandNonce:      op.RandNonce,
		Signature:      op.Signature,
	}}, nil
}

// --- CancelSendFunds ---

type CancelSendFundsOp struct {
	CurrencyField ccrypto.Currency
	RequestID     ccrypto.Hash
}

func (op *CancelSendFundsOp) Tag() OpTag                { return TagCancelSendFunds }
func (op *CancelSendFundsOp) Currency() ccrypto.Currency { return op.CurrencyField }
func (op *CancelSendFundsOp) Encode(w io.Writer) error   { return writeHash(w, op.RequestID) }

func (op *CancelSendFundsOp) decode(r io.Reader) error {
	var err error
	op.RequestID, err = readHash(r)
	return err
}

func (op *CancelSendFundsOp) ToCredit() (creditunit.Op, error) {
	return creditunit.CancelSendFundsOp{RequestID: op.RequestID}, nil
}

// --- CollectSendFunds ---

type CollectSendFundsOp struct {
	CurrencyField ccrypto.Currency
	RequestID     ccrypto.Hash
	SrcPlainLock  ccrypto.PlainLock
	DestPlainLock ccrypto.PlainLock
}

func (op *CollectSendFundsOp) Tag() OpTag                { return TagCollectSendFunds }
func (op *CollectSendFundsOp) Currency() ccrypto.Currency { return op.CurrencyField }

func (op *CollectSendFundsOp) Encode(w io.Writer) error {
	if err := writeHash(w, op.RequestID); err != nil {
		return err
	}
	if _, err := w.Write(op.SrcPlainLock[:]); err != nil {
		return err
	}
	_, err := w.Write(op.DestPlainLock[:])
	return err
}

func (op *CollectSendFundsOp) decode(r io.Reader) error {
	var err error
	if op.RequestID, err = readHash(r); err != nil {
		return err
	}
	if _, err = io.ReadFull(r, op.SrcPlainLock[:]); err != nil {
		return err
	}
	_, err = io.ReadFull(r, op.DestPlainLock[:])
	return err
}

func (op *CollectSendFundsOp) ToCredit() (creditunit.Op, error) {
	return creditunit.CollectSendFundsOp{Args: creditunit.CollectSendFundsArgs{
		RequestID:     op.RequestID,
		SrcPlainLock:  op.SrcPlainLock,
		DestPlainLock: op.DestPlainLock,
	}}, nil
}
