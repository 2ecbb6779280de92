// Package creditunit implements the mutual-credit unit of spec.md §4.1:
// the bilateral, per-currency balance sheet shared by two friends,
// together with the seven operations that mutate it. It is the hard
// core's innermost layer -- tokenchannel wraps a map of these keyed by
// currency, and funder drives everything above that.
package creditunit

import (
	"fmt"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
)

// RequestsStatus gates whether a side accepts incoming forwarded
// requests.
type RequestsStatus uint8

const (
	// StatusClosed means requests are not currently being accepted.
	StatusClosed RequestsStatus = iota
	// StatusOpen means requests are currently being accepted.
	StatusOpen
)

// Stage tracks where a pending transaction sits in the
// Request -> Response -> Collect/Cancel lifecycle.
type Stage uint8

const (
	// StageRequest: a RequestSendFunds has been reserved, no response yet.
	StageRequest Stage = iota
	// StageResponse: a ResponseSendFunds has been received/sent; the
	// pending transaction now also carries a dest hashed lock.
	StageResponse
)

// PendingRequest is the originating RequestSendFunds for a transaction
// that has not yet been Collected or Canceled, as tracked in
// pending_transactions.local/.remote (spec.md §3).
type PendingRequest struct {
	RequestID        ccrypto.Hash
	Route            Route
	DestPayment      *big.Int
	TotalDestPayment *big.Int
	InvoiceID        ccrypto.Hash
	SrcHashedLock    ccrypto.HashedLock
	LeftFees         *big.Int

	Stage          Stage
	DestHashedLock ccrypto.HashedLock // valid once Stage == StageResponse
}

func (p *PendingRequest) clone() *PendingRequest {
	if p == nil {
		return nil
	}
	cp := *p
	cp.DestPayment = new(big.Int).Set(p.DestPayment)
	cp.TotalDestPayment = new(big.Int).Set(p.TotalDestPayment)
	cp.LeftFees = new(big.Int).Set(p.LeftFees)
	route := make(Route, len(p.Route))
	copy(route, p.Route)
	cp.Route = route
	return &cp
}

// Unit is the bilateral per-currency balance sheet for one friend, per
// spec.md §3.
type Unit struct {
	Currency ccrypto.Currency

	// Balance is this side's signed credit balance; the remote holds its
	// negation.
	Balance *big.Int

	// LocalMaxDebt is the ceiling the remote peer has granted us (how
	// much we may owe them); RemoteMaxDebt is the ceiling we have
	// granted the remote peer.
	LocalMaxDebt  *big.Int
	RemoteMaxDebt *big.Int

	// LocalPendingDebt/RemotePendingDebt are credits reserved by
	// in-flight requests on each side.
	LocalPendingDebt  *big.Int
	RemotePendingDebt *big.Int

	// LocalRequestsStatus is our own gate on accepting incoming
	// forwarded requests; RemoteRequestsStatus mirrors the peer's gate
	// as last reported to us.
	LocalRequestsStatus  RequestsStatus
	RemoteRequestsStatus RequestsStatus

	// LocalPendingTransactions holds requests for which we are awaiting
	// a response; RemotePendingTransactions holds requests for which the
	// peer is awaiting our response.
	LocalPendingTransactions  map[ccrypto.Hash]*PendingRequest
	RemotePendingTransactions map[ccrypto.Hash]*PendingRequest
}

// New creates a fresh, zero-balance mutual-credit unit for currency.
func New(currency ccrypto.Currency) *Unit {
	return &Unit{
		Currency:                  currency,
		Balance:                   big.NewInt(0),
		LocalMaxDebt:              big.NewInt(0),
		RemoteMaxDebt:             big.NewInt(0),
		LocalPendingDebt:          big.NewInt(0),
		RemotePendingDebt:         big.NewInt(0),
		LocalRequestsStatus:       StatusClosed,
		RemoteRequestsStatus:      StatusClosed,
		LocalPendingTransactions:  make(map[ccrypto.Hash]*PendingRequest),
		RemotePendingTransactions: make(map[ccrypto.Hash]*PendingRequest),
	}
}

// NewFromReset seeds a unit from an agreed reset balance (spec.md §4.3:
// "rebuilds the token channel seeded by the agreed balances"). All pending
// debts and transactions are empty, since a reset discards all in-flight
// state.
func NewFromReset(currency ccrypto.Currency, balance *big.Int) *Unit {
	u := New(currency)
	u.Balance = new(big.Int).Set(balance)
	return u
}

// Clone returns a deep copy of u, used by tokenchannel to implement the
// clone-try-commit, all-or-nothing application of an operation batch
// (spec.md §9 Design Notes).
func (u *Unit) Clone() *Unit {
	cp := &Unit{
		Currency:             u.Currency,
		Balance:              new(big.Int).Set(u.Balance),
		LocalMaxDebt:          new(big.Int).Set(u.LocalMaxDebt),
		RemoteMaxDebt:         new(big.Int).Set(u.RemoteMaxDebt),
		LocalPendingDebt:      new(big.Int).Set(u.LocalPendingDebt),
		RemotePendingDebt:     new(big.Int).Set(u.RemotePendingDebt),
		LocalRequestsStatus:   u.LocalRequestsStatus,
		RemoteRequestsStatus:  u.RemoteRequestsStatus,
		LocalPendingTransactions:  make(map[ccrypto.Hash]*PendingRequest, len(u.LocalPendingTransactions)),
		RemotePendingTransactions: make(map[ccrypto.Hash]*PendingRequest, len(u.RemotePendingTransactions)),
	}
	for k, v := range u.LocalPendingTransactions {
		cp.LocalPendingTransactions[k] = v.clone()
	}
	for k, v := range u.RemotePendingTransactions {
		cp.RemotePendingTransactions[k] = v.clone()
	}
	return cp
}

// BalanceForReset is the value committed on channel reset, per spec.md §3:
// balance_for_reset := balance + remote_pending_debt.
func (u *Unit) BalanceForReset() *big.Int {
	return new(big.Int).Add(u.Balance, u.RemotePendingDebt)
}

// CheckInvariants validates the two core inequalities that must hold after
// every mutation (spec.md §3/§8):
//
//	-local_max_debt <= balance - local_pending_debt
//	balance + remote_pending_debt <= remote_max_debt
func (u *Unit) CheckInvariants() error {
	lhs := new(big.Int).Sub(u.Balance, u.LocalPendingDebt)
	negLocalMax := new(big.Int).Neg(u.LocalMaxDebt)
	if lhs.Cmp(negLocalMax) < 0 {
		return fmt.Errorf("invariant violated: balance(%s) - local_pending_debt(%s) = %s < -local_max_debt(%s)",
			u.Balance, u.LocalPendingDebt, lhs, u.LocalMaxDebt)
	}

	rhs := new(big.Int).Add(u.Balance, u.RemotePendingDebt)
	if rhs.Cmp(u.RemoteMaxDebt) > 0 {
		return fmt.Errorf("invariant violated: balance(%s) + remote_pending_debt(%s) = %s > remote_max_debt(%s)",
			u.Balance, u.RemotePendingDebt, rhs, u.RemoteMaxDebt)
	}

	if err := ccrypto.CheckI128(u.Balance); err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	if err := ccrypto.CheckU128(u.LocalPendingDebt); err != nil {
		return fmt.Errorf("local_pending_debt: %w", err)
	}
	if err := ccrypto.CheckU128(u.RemotePendingDebt); err != nil {
		return fmt.Errorf("remote_pending_debt: %w", err)
	}
	if err := ccrypto.CheckMaxDebt(u.LocalMaxDebt); err != nil {
		return fmt.Errorf("local_max_debt: %w", err)
	}
	if err := ccrypto.CheckMaxDebt(u.RemoteMaxDebt); err != nil {
		return fmt.Errorf("remote_max_debt: %w", err)
	}
	return nil
}
