// Package appif implements spec.md §6's control interface between the
// funder and the application: one `AppRequest` type per local
// `AppToAppServer` variant, permission-gated per connection, dispatched by
// a single-writer Server that funder/payment.go and persist.Store both sit
// behind (spec.md §5: "the database is accessed by one writer ... via a
// mutation channel").
package appif

import (
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
)

// AppRequestID is the client-chosen correlation id every AppToAppServer
// carries, echoed back on every AppServerToApp that causally follows it.
type AppRequestID uint64

// RequestKind distinguishes the closed set of AppRequest variants spec.md
// §6 enumerates.
type RequestKind uint8

const (
	KindAddFriend RequestKind = iota
	KindRemoveFriend
	KindSetFriendName
	KindEnableFriend
	KindDisableFriend
	KindSetFriendRemoteMaxDebt
	KindSetFriendRate
	KindOpenFriend
	KindCloseFriend
	KindCreatePayment
	KindCreateTransaction
	KindRequestClosePayment
	KindAckClosePayment
	KindAddInvoice
	KindCancelInvoice
	KindCommitInvoice
)

// AppRequest is one control-interface message from the application to the
// funder. Every concrete type also names the AppPermissions field it is
// gated behind (see permissions.go); Server.Submit drops a request whose
// gate is not granted instead of returning an error, per spec.md §6:
// "Requests outside the granted set are dropped ... and no state-visible
// effect occurs."
type AppRequest interface {
	Kind() RequestKind
	requiredPermission() func(AppPermissions) bool
}

// AddFriendRequest implements AppRequest.AddFriend.
type AddFriendRequest struct {
	RemotePK ccrypto.PublicKey
	Name     string
}

func (AddFriendRequest) Kind() RequestKind                       { return KindAddFriend }
func (AddFriendRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// RemoveFriendRequest implements AppRequest.RemoveFriend.
type RemoveFriendRequest struct {
	RemotePK ccrypto.PublicKey
}

func (RemoveFriendRequest) Kind() RequestKind                       { return KindRemoveFriend }
func (RemoveFriendRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// SetFriendNameRequest implements AppRequest.SetFriendName.
type SetFriendNameRequest struct {
	RemotePK ccrypto.PublicKey
	Name     string
}

func (SetFriendNameRequest) Kind() RequestKind                       { return KindSetFriendName }
func (SetFriendNameRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// EnableFriendRequest implements AppRequest.EnableFriend.
type EnableFriendRequest struct {
	RemotePK ccrypto.PublicKey
}

func (EnableFriendRequest) Kind() RequestKind                       { return KindEnableFriend }
func (EnableFriendRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// DisableFriendRequest implements AppRequest.DisableFriend.
type DisableFriendRequest struct {
	RemotePK ccrypto.PublicKey
}

func (DisableFriendRequest) Kind() RequestKind                       { return KindDisableFriend }
func (DisableFriendRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// SetFriendRemoteMaxDebtRequest implements
// AppRequest.SetFriendRemoteMaxDebt{pk,currency,u128}.
type SetFriendRemoteMaxDebtRequest struct {
	RemotePK ccrypto.PublicKey
	Currency ccrypto.Currency
	MaxDebt  *big.Int
}

func (SetFriendRemoteMaxDebtRequest) Kind() RequestKind { return KindSetFriendRemoteMaxDebt }
func (SetFriendRemoteMaxDebtRequest) requiredPermission() func(AppPermissions) bool {
	return configGate
}

// SetFriendRateRequest implements AppRequest.SetFriendRate{pk,rate}.
type SetFriendRateRequest struct {
	RemotePK ccrypto.PublicKey
	Rate     friend.Rate
}

func (SetFriendRateRequest) Kind() RequestKind                       { return KindSetFriendRate }
func (SetFriendRateRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// OpenFriendRequest implements AppRequest.OpenFriend{pk,currency}: grants
// the peer the right to send us requests in currency (sets our
// LocalRequestsStatus to Open on the next outgoing batch).
type OpenFriendRequest struct {
	RemotePK ccrypto.PublicKey
	Currency ccrypto.Currency
}

func (OpenFriendRequest) Kind() RequestKind                       { return KindOpenFriend }
func (OpenFriendRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// CloseFriendRequest implements AppRequest.CloseFriend{pk,currency}.
type CloseFriendRequest struct {
	RemotePK ccrypto.PublicKey
	Currency ccrypto.Currency
}

func (CloseFriendRequest) Kind() RequestKind                       { return KindCloseFriend }
func (CloseFriendRequest) requiredPermission() func(AppPermissions) bool { return configGate }

// CreatePaymentRequest implements AppRequest.CreatePayment (buyer side).
type CreatePaymentRequest struct {
	InvoiceID        ccrypto.Hash
	Currency         ccrypto.Currency
	TotalDestPayment *big.Int
}

func (CreatePaymentRequest) Kind() RequestKind                       { return KindCreatePayment }
func (CreatePaymentRequest) requiredPermission() func(AppPermissions) bool { return buyerGate }

// CreateTransactionRequest implements AppRequest.CreateTransaction (buyer
// side): adds one route's leg to an already-open payment.
type CreateTransactionRequest struct {
	InvoiceID   ccrypto.Hash
	Route       creditunit.Route
	DestPayment *big.Int
	LeftFees    *big.Int
}

func (CreateTransactionRequest) Kind() RequestKind                       { return KindCreateTransaction }
func (CreateTransactionRequest) requiredPermission() func(AppPermissions) bool { return buyerGate }

// RequestClosePaymentRequest implements AppRequest.RequestClosePayment: the
// buyer asks to learn a payment's terminal state (spec.md's
// AfterSuccessAck(n) lifecycle, SPEC_FULL.md SUPPLEMENTED FEATURES).
type RequestClosePaymentRequest struct {
	InvoiceID ccrypto.Hash
}

func (RequestClosePaymentRequest) Kind() RequestKind { return KindRequestClosePayment }
func (RequestClosePaymentRequest) requiredPermission() func(AppPermissions) bool {
	return buyerGate
}

// AckClosePaymentRequest implements AppRequest.AckClosePayment: the buyer
// acknowledges a ResponseClosePayment, letting the funder finally delete
// the payment's bookkeeping.
type AckClosePaymentRequest struct {
	InvoiceID ccrypto.Hash
}

func (AckClosePaymentRequest) Kind() RequestKind                       { return KindAckClosePayment }
func (AckClosePaymentRequest) requiredPermission() func(AppPermissions) bool { return buyerGate }

// AddInvoiceRequest implements AppRequest.AddInvoice (seller side).
type AddInvoiceRequest struct {
	InvoiceID        ccrypto.Hash
	Currency         ccrypto.Currency
	TotalDestPayment *big.Int
}

func (AddInvoiceRequest) Kind() RequestKind                       { return KindAddInvoice }
func (AddInvoiceRequest) requiredPermission() func(AppPermissions) bool { return sellerGate }

// CancelInvoiceRequest implements AppRequest.CancelInvoice.
type CancelInvoiceRequest struct {
	InvoiceID ccrypto.Hash
}

func (CancelInvoiceRequest) Kind() RequestKind                       { return KindCancelInvoice }
func (CancelInvoiceRequest) requiredPermission() func(AppPermissions) bool { return sellerGate }

// CommitInvoiceRequest implements AppRequest.CommitInvoice: the seller
// presents a buyer-supplied MultiCommit to release payment.
type CommitInvoiceRequest struct {
	InvoiceID        ccrypto.Hash
	Currency         ccrypto.Currency
	TotalDestPayment *big.Int
	Commits          []CommitArg
}

// CommitArg is one route-leg commit within a CommitInvoiceRequest, kept
// free of the invoice package's own Commit type so appif has no import
// cycle back into invoice's signature-buffer internals.
type CommitArg struct {
	ResponseHash   ccrypto.Hash
	DestPayment    *big.Int
	SrcPlainLock   ccrypto.PlainLock
	DestHashedLock ccrypto.HashedLock
	Signature      ccrypto.Signature
}

func (CommitInvoiceRequest) Kind() RequestKind                       { return KindCommitInvoice }
func (CommitInvoiceRequest) requiredPermission() func(AppPermissions) bool { return sellerGate }
