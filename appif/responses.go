package appif

import (
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/persist"
)

// AppServerToApp is one control-interface message from the funder back to
// the application, per spec.md §6. Every reaction that causally follows an
// AppRequest carries that request's AppRequestID so the client can
// correlate it (ReportMutations is the one variant that may also fire
// unprompted, in which case RequestID is the zero value).
type AppServerToApp interface {
	isAppServerToApp()
}

// TransactionResultKind is the buyer-visible terminal state of one
// CreateTransaction leg.
type TransactionResultKind uint8

const (
	TransactionResultSuccess TransactionResultKind = iota
	TransactionResultFailure
)

// TransactionResult answers a CreateTransactionRequest once the leg it
// named reaches a terminal state.
type TransactionResult struct {
	RequestID AppRequestID
	Kind      TransactionResultKind
	Reason    string // populated only for TransactionResultFailure
}

func (TransactionResult) isAppServerToApp() {}

// ResponseClosePayment answers a RequestClosePaymentRequest: the payment's
// terminal state, which the buyer must AckClosePayment before the funder
// deletes its bookkeeping (SPEC_FULL.md's AfterSuccessAck(n) lifecycle).
type ResponseClosePayment struct {
	RequestID AppRequestID
	InvoiceID ccrypto.Hash
	Succeeded bool
	Acked     bool
}

func (ResponseClosePayment) isAppServerToApp() {}

// FriendSummary is one friend's current state as surfaced in a NodeReport.
type FriendSummary struct {
	RemotePK ccrypto.PublicKey
	Name     string
	Disabled bool
	Balances map[ccrypto.Currency]*big.Int
}

// NodeReport is the funder's full-state snapshot surfaced to the
// application on demand or on (re)connection, corresponding to spec.md
// §6's `NodeState` (friends map, payments, open transactions) restricted
// to what an application actually needs to render -- it is not the same
// object persist.NodeSnapshot checkpoints, though both derive from the
// same funder.Funder.
type NodeReport struct {
	LocalPK ccrypto.PublicKey
	Friends []FriendSummary
}

// Report carries a NodeReport back to the application.
type Report struct {
	RequestID AppRequestID
	Node      NodeReport
}

func (Report) isAppServerToApp() {}

// ReportMutations streams every persist.Mutation the funder just applied
// and durably logged, so a connected application can maintain its own
// mirror of NodeState incrementally instead of re-fetching a full Report
// after each request -- spec.md §6's `ReportMutations(mutations,
// opt_app_request_id)`. RequestID is zero when the mutations were not
// triggered by this connection's own request (e.g. an incoming MoveToken
// from a friend).
type ReportMutations struct {
	RequestID AppRequestID
	Sequence  uint64
	Mutations []persist.Mutation
}

func (ReportMutations) isAppServerToApp() {}

// ResponseRoutes answers a RequestRoutes AppRequest. Route discovery
// against an index-server overlay is out of scope (spec.md's Non-goal on
// index-routing implementations; funder/seqfriends.go instead works from
// routes the application already supplies), so no request Server handles
// produces this type -- it is kept to complete the AppServerToApp enum
// spec.md §6 names, not as a real pathfinder.
type ResponseRoutes struct {
	RequestID AppRequestID
	Routes    []interface{}
}

func (ResponseRoutes) isAppServerToApp() {}
