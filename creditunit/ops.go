package creditunit

import (
	"fmt"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
)

// Direction distinguishes whether an operation is being queued for
// outgoing transmission to the peer (we authored it) or processed as
// having been received from the peer (spec.md §4.1: "apply outgoing
// operation" vs "process incoming operation").
type Direction uint8

const (
	Outgoing Direction = iota
	Incoming
)

// Op is the common interface implemented by every FriendTcOp
// (spec.md GLOSSARY). Apply mutates unit in place; callers are
// responsible for operating on a Unit.Clone() so that a failed op leaves
// no trace (spec.md §4.1: "on failure the handle is discarded with no
// side effect").
type Op interface {
	Apply(u *Unit, dir Direction) error
}

// EnableRequestsOp opens the gate on the issuing side.
type EnableRequestsOp struct{}

func (EnableRequestsOp) Apply(u *Unit, dir Direction) error {
	if dir == Outgoing {
		if u.LocalRequestsStatus == StatusOpen {
			return fmt.Errorf("EnableRequests: local requests already open")
		}
		u.LocalRequestsStatus = StatusOpen
	} else {
		if u.RemoteRequestsStatus == StatusOpen {
			return fmt.Errorf("EnableRequests: remote requests already open")
		}
		u.RemoteRequestsStatus = StatusOpen
	}
	return u.CheckInvariants()
}

// DisableRequestsOp closes the gate on the issuing side.
type DisableRequestsOp struct{}

func (DisableRequestsOp) Apply(u *Unit, dir Direction) error {
	if dir == Outgoing {
		if u.LocalRequestsStatus == StatusClosed {
			return fmt.Errorf("DisableRequests: local requests already closed")
		}
		u.LocalRequestsStatus = StatusClosed
	} else {
		if u.RemoteRequestsStatus == StatusClosed {
			return fmt.Errorf("DisableRequests: remote requests already closed")
		}
		u.RemoteRequestsStatus = StatusClosed
	}
	return u.CheckInvariants()
}

// SetRemoteMaxDebtOp adjusts a debt ceiling.
type SetRemoteMaxDebtOp struct {
	X *big.Int
}

func (op SetRemoteMaxDebtOp) Apply(u *Unit, dir Direction) error {
	if err := ccrypto.CheckMaxDebt(op.X); err != nil {
		return fmt.Errorf("SetRemoteMaxDebt: %w", err)
	}
	if dir == Outgoing {
		// Sets the local view of the ceiling we grant the peer.
		u.RemoteMaxDebt = new(big.Int).Set(op.X)
	} else {
		// The peer is setting the ceiling it grants us.
		u.LocalMaxDebt = new(big.Int).Set(op.X)
	}
	return u.CheckInvariants()
}

// RequestSendFundsArgs carries the fields of a RequestSendFunds operation
// (spec.md §4.1).
type RequestSendFundsArgs struct {
	RequestID        ccrypto.Hash
	Route            Route
	SrcHashedLock    ccrypto.HashedLock
	DestPayment      *big.Int
	TotalDestPayment *big.Int
	InvoiceID        ccrypto.Hash
	LeftFees         *big.Int
}

// RequestSendFundsOp reserves pending debt for a new forwarded request.
type RequestSendFundsOp struct {
	Args RequestSendFundsArgs
}

func (op RequestSendFundsOp) Apply(u *Unit, dir Direction) error {
	args := op.Args
	if err := args.Route.Validate(); err != nil {
		return fmt.Errorf("RequestSendFunds: %w", err)
	}
	if args.DestPayment.Sign() < 0 || args.LeftFees.Sign() < 0 {
		return fmt.Errorf("RequestSendFunds: dest_payment and left_fees must be non-negative")
	}

	reserve := new(big.Int).Add(args.DestPayment, args.LeftFees)

	if dir == Outgoing {
		// The recipient is the peer: it must have its own gate open,
		// as last reported to us.
		if u.RemoteRequestsStatus != StatusOpen {
			return fmt.Errorf("RequestSendFunds: peer's requests are closed")
		}
		if _, exists := u.LocalPendingTransactions[args.RequestID]; exists {
			return fmt.Errorf("RequestSendFunds: request id %s already pending", args.RequestID)
		}

		newPending := new(big.Int).Add(u.LocalPendingDebt, reserve)
		prevPending := u.LocalPendingDebt
		u.LocalPendingDebt = newPending
		if err := u.CheckInvariants(); err != nil {
			u.LocalPendingDebt = prevPending
			return fmt.Errorf("RequestSendFunds: %w", err)
		}

		u.LocalPendingTransactions[args.RequestID] = &PendingRequest{
			RequestID:        args.RequestID,
			Route:            args.Route,
			DestPayment:      new(big.Int).Set(args.DestPayment),
			TotalDestPayment: new(big.Int).Set(args.TotalDestPayment),
			InvoiceID:        args.InvoiceID,
			SrcHashedLock:    args.SrcHashedLock,
			LeftFees:         new(big.Int).Set(args.LeftFees),
			Stage:            StageRequest,
		}
		return nil
	}

	// Incoming: we are the recipient, our own gate must be open.
	if u.LocalRequestsStatus != StatusOpen {
		return fmt.Errorf("RequestSendFunds: local requests are closed")
	}
	if _, exists := u.RemotePendingTransactions[args.RequestID]; exists {
		return fmt.Errorf("RequestSendFunds: request id %s already pending", args.RequestID)
	}

	newPending := new(big.Int).Add(u.RemotePendingDebt, reserve)
	prevPending := u.RemotePendingDebt
	u.RemotePendingDebt = newPending
	if err := u.CheckInvariants(); err != nil {
		u.RemotePendingDebt = prevPending
		return fmt.Errorf("RequestSendFunds: %w", err)
	}

	u.RemotePendingTransactions[args.RequestID] = &PendingRequest{
		RequestID:        args.RequestID,
		Route:            args.Route,
		DestPayment:      new(big.Int).Set(args.DestPayment),
		TotalDestPayment: new(big.Int).Set(args.TotalDestPayment),
		InvoiceID:        args.InvoiceID,
		SrcHashedLock:    args.SrcHashedLock,
		LeftFees:         new(big.Int).Set(args.LeftFees),
		Stage:            StageRequest,
	}
	return nil
}

// ResponseSendFundsArgs carries the fields of a ResponseSendFunds
// operation (spec.md §4.1).
type ResponseSendFundsArgs struct {
	RequestID      ccrypto.Hash
	DestHashedLock ccrypto.HashedLock
	RandNonce      ccrypto.Hash
	Signature      ccrypto.Signature
}

// ResponseSendFundsOp advances a pending transaction from Request to
// Response(dest_hashed_lock).
type ResponseSendFundsOp struct {
	Args ResponseSendFundsArgs
}

func (op ResponseSendFundsOp) Apply(u *Unit, dir Direction) error {
	args := op.Args

	var table map[ccrypto.Hash]*PendingRequest
	if dir == Outgoing {
		// We are answering a request the peer sent us.
		table = u.RemotePendingTransactions
	} else {
		// The peer is answering a request we sent.
		table = u.LocalPendingTransactions
	}

	pending, ok := table[args.RequestID]
	if !ok {
		return fmt.Errorf("ResponseSendFunds: unknown request id %s", args.RequestID)
	}
	if pending.Stage != StageRequest {
		return fmt.Errorf("ResponseSendFunds: request id %s is not in Request stage", args.RequestID)
	}
	if len(pending.Route) == 0 {
		return fmt.Errorf("ResponseSendFunds: pending request has empty route")
	}

	destPK := pending.Route[len(pending.Route)-1]
	buf := ccrypto.ResponseSignatureBuff(
		args.RequestID, args.RandNonce, pending.SrcHashedLock, args.DestHashedLock,
		pending.DestPayment, pending.TotalDestPayment, pending.InvoiceID, u.Currency,
	)
	if !ccrypto.Verify(destPK, buf, args.Signature) {
		return fmt.Errorf("ResponseSendFunds: invalid signature for request id %s", args.RequestID)
	}

	pending.Stage = StageResponse
	pending.DestHashedLock = args.DestHashedLock
	return u.CheckInvariants()
}

// CancelSendFundsOp terminates a pending transaction, releasing its
// reservation with no balance change.
type CancelSendFundsOp struct {
	RequestID ccrypto.Hash
}

func (op CancelSendFundsOp) Apply(u *Unit, dir Direction) error {
	if dir == Outgoing {
		pending, ok := u.RemotePendingTransactions[op.RequestID]
		if !ok {
			return fmt.Errorf("CancelSendFunds: unknown request id %s", op.RequestID)
		}
		reserve := new(big.Int).Add(pending.DestPayment, pending.LeftFees)
		u.RemotePendingDebt = new(big.Int).Sub(u.RemotePendingDebt, reserve)
		delete(u.RemotePendingTransactions, op.RequestID)
		return u.CheckInvariants()
	}

	pending, ok := u.LocalPendingTransactions[op.RequestID]
	if !ok {
		return fmt.Errorf("CancelSendFunds: unknown request id %s", op.RequestID)
	}
	reserve := new(big.Int).Add(pending.DestPayment, pending.LeftFees)
	u.LocalPendingDebt = new(big.Int).Sub(u.LocalPendingDebt, reserve)
	delete(u.LocalPendingTransactions, op.RequestID)
	return u.CheckInvariants()
}

// CollectSendFundsArgs carries the fields of a CollectSendFunds operation.
// RequestID is carried alongside the two locks spec.md §4.1 names, so a
// hop need not search every pending transaction for a matching hash pair
// (a reasonable, original_source-consistent addressing detail the
// distilled spec omits).
type CollectSendFundsArgs struct {
	RequestID    ccrypto.Hash
	SrcPlainLock ccrypto.PlainLock
	DestPlainLock ccrypto.PlainLock
}

// CollectSendFundsOp finalizes a pending transaction, shifting balance in
// favour of the responder.
type CollectSendFundsOp struct {
	Args CollectSendFundsArgs
}

func (op CollectSendFundsOp) Apply(u *Unit, dir Direction) error {
	args := op.Args

	var table map[ccrypto.Hash]*PendingRequest
	if dir == Outgoing {
		table = u.RemotePendingTransactions
	} else {
		table = u.LocalPendingTransactions
	}

	pending, ok := table[args.RequestID]
	if !ok {
		return fmt.Errorf("CollectSendFunds: unknown request id %s", args.RequestID)
	}
	if pending.Stage != StageResponse {
		return fmt.Errorf("CollectSendFunds: request id %s is not in Response stage", args.RequestID)
	}
	if args.DestPlainLock.Hash() != pending.DestHashedLock {
		return fmt.Errorf("CollectSendFunds: dest_plain_lock does not match dest_hashed_lock")
	}
	if args.SrcPlainLock.Hash() != pending.SrcHashedLock {
		return fmt.Errorf("CollectSendFunds: src_plain_lock does not match src_hashed_lock")
	}

	shift := new(big.Int).Add(pending.DestPayment, pending.LeftFees)

	if dir == Outgoing {
		// We are the responder: balance moves in our favour.
		u.Balance = new(big.Int).Add(u.Balance, shift)
		u.RemotePendingDebt = new(big.Int).Sub(u.RemotePendingDebt, shift)
		delete(u.RemotePendingTransactions, args.RequestID)
	} else {
		// The peer is the responder: our balance moves against us.
		u.Balance = new(big.Int).Sub(u.Balance, shift)
		u.LocalPendingDebt = new(big.Int).Sub(u.LocalPendingDebt, shift)
		delete(u.LocalPendingTransactions, args.RequestID)
	}
	return u.CheckInvariants()
}
