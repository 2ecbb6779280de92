package funder

import (
	"crypto/rand"
	"fmt"
	"math/big"

	goerrors "github.com/go-errors/errors"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/invoice"
	"github.com/creditmesh/meshnode/mwire"
)

// TransactionState is an OpenTransaction's lifecycle, per spec.md §4.4's
// buyer-side bookkeeping for one route of a multi-route payment.
type TransactionState uint8

const (
	TransactionPending TransactionState = iota
	TransactionSucceeded
	TransactionFailed
)

// OpenTransaction is one route's leg of a Payment: the buyer sent a single
// RequestSendFundsOp along it and is waiting for a Response or a Cancel.
type OpenTransaction struct {
	RequestID        ccrypto.Hash
	InvoiceID        ccrypto.Hash
	Currency         ccrypto.Currency
	Route            creditunit.Route
	SrcPlainLock     ccrypto.PlainLock
	DestPayment      *big.Int
	TotalDestPayment *big.Int

	State  TransactionState
	Commit *invoice.Commit
}

// Payment is the buyer's view of one invoice being paid, possibly split
// across several routes (spec.md §4.4's "Multi-route payments").
type Payment struct {
	InvoiceID        ccrypto.Hash
	Currency         ccrypto.Currency
	TotalDestPayment *big.Int
	Transactions     map[ccrypto.Hash]*OpenTransaction
}

// CreatePayment opens the buyer-side bookkeeping for paying invoiceID; routes
// are added one at a time afterwards via CreateTransaction.
func (fd *Funder) CreatePayment(invoiceID ccrypto.Hash, currency ccrypto.Currency, totalDestPayment *big.Int) (*Payment, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if _, exists := fd.Payments[invoiceID]; exists {
		return nil, fmt.Errorf("funder: payment for invoice %s already open", invoiceID)
	}
	p := &Payment{
		InvoiceID:        invoiceID,
		Currency:         currency,
		TotalDestPayment: new(big.Int).Set(totalDestPayment),
		Transactions:     make(map[ccrypto.Hash]*OpenTransaction),
	}
	fd.Payments[invoiceID] = p
	return p, nil
}

// CreateTransaction adds one route's leg to an open payment: it mints a
// fresh request_id and src_plain_lock, records an OpenTransaction, and
// enqueues the RequestSendFundsOp on the first hop's pending_user_requests
// (spec.md §4.5).
func (fd *Funder) CreateTransaction(invoiceID ccrypto.Hash, route creditunit.Route, destPayment, leftFees *big.Int) (*mwire.RequestSendFundsOp, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	p, ok := fd.Payments[invoiceID]
	if !ok {
		return nil, fmt.Errorf("funder: unknown payment for invoice %s", invoiceID)
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}
	if route.IndexOf(fd.LocalPK) != 0 {
		return nil, fmt.Errorf("funder: route must start at us")
	}

	firstHopPK := route[1]
	first, ok := fd.Friends[firstHopPK]
	if !ok || first.Status != friend.StatusEnabled || first.ChannelStatus.Kind != friend.ChannelConsistent {
		return nil, fmt.Errorf("funder: first hop %s unavailable", firstHopPK)
	}
	if fd.SeqFriends.TickAndCheckStale(firstHopPK) {
		log.Warnf("route through %s has gone %d cycles without reuse; "+
			"caller should refresh it before the next payment", firstHopPK, seqFriendsStaleAfter)
	}
	queues := first.QueuesFor(p.Currency)
	if len(queues.PendingUserRequests) >= MaxPendingUserRequests {
		return nil, ErrTooManyPendingUserRequests
	}

	var requestID ccrypto.Hash
	if _, err := rand.Read(requestID[:]); err != nil {
		return nil, err
	}
	srcPlainLock, err := ccrypto.NewPlainLock()
	if err != nil {
		return nil, err
	}

	op := &mwire.RequestSendFundsOp{
		CurrencyField:    p.Currency,
		RequestID:        requestID,
		Route:            []ccrypto.PublicKey(route),
		SrcHashedLock:    srcPlainLock.Hash(),
		DestPayment:      new(big.Int).Set(destPayment),
		TotalDestPayment: new(big.Int).Set(p.TotalDestPayment),
		InvoiceID:        invoiceID,
		LeftFees:         new(big.Int).Set(leftFees),
	}
	if err := checkCanQueue(first.ChannelStatus.Channel, p.Currency, op); err != nil {
		return nil, fmt.Errorf("funder: first hop cannot accept this request: %w", err)
	}

	p.Transactions[requestID] = &OpenTransaction{
		RequestID:        requestID,
		InvoiceID:        invoiceID,
		Currency:         p.Currency,
		Route:            route,
		SrcPlainLock:     srcPlainLock,
		DestPayment:      new(big.Int).Set(destPayment),
		TotalDestPayment: new(big.Int).Set(p.TotalDestPayment),
		State:            TransactionPending,
	}
	queues.EnqueueUserRequest(op)
	fd.SeqFriends.Touch(firstHopPK)
	return op, nil
}

// findTransaction locates the open transaction and payment that requestID
// belongs to, across every currently-open payment.
func (fd *Funder) findTransaction(requestID ccrypto.Hash) (*OpenTransaction, *Payment) {
	for _, p := range fd.Payments {
		if tx, ok := p.Transactions[requestID]; ok {
			return tx, p
		}
	}
	return nil, nil
}

// settleOwnTransactionResponse handles a ResponseSendFunds for a request we
// originated ourselves: it verifies the seller's signature, and on success
// records the resulting Commit on the transaction.
func (fd *Funder) settleOwnTransactionResponse(currency ccrypto.Currency, op *mwire.ResponseSendFundsOp) error {
	tx, _ := fd.findTransaction(op.RequestID)
	if tx == nil {
		return goerrors.Errorf("funder: no open transaction for request %s", op.RequestID)
	}
	if tx.State != TransactionPending {
		return nil
	}

	sellerPK := tx.Route[len(tx.Route)-1]
	responseHash := ccrypto.ResponseHash(op.RequestID, op.RandNonce)
	buf := ccrypto.CommitSignatureBuff(responseHash, tx.SrcPlainLock, op.DestHashedLock,
		tx.DestPayment, tx.TotalDestPayment, tx.InvoiceID, currency)
	if !ccrypto.Verify(sellerPK, buf, op.Signature) {
		tx.State = TransactionFailed
		return fmt.Errorf("funder: seller signature on response for request %s does not verify", op.RequestID)
	}

	tx.Commit = &invoice.Commit{
		ResponseHash:   responseHash,
		DestPayment:    new(big.Int).Set(tx.DestPayment),
		SrcPlainLock:   tx.SrcPlainLock,
		DestHashedLock: op.DestHashedLock,
		Signature:      op.Signature,
	}
	tx.State = TransactionSucceeded
	return nil
}

// failOwnTransaction marks a request we originated as failed once a
// CancelSendFunds returns for it.
func (fd *Funder) failOwnTransaction(requestID ccrypto.Hash) error {
	tx, _ := fd.findTransaction(requestID)
	if tx == nil {
		return goerrors.Errorf("funder: no open transaction for request %s", requestID)
	}
	if tx.State == TransactionPending {
		tx.State = TransactionFailed
	}
	return nil
}

// TryBuildMultiCommit assembles a MultiCommit once every transaction in the
// payment has succeeded, per spec.md §4.4's multi-route payment close.
func (p *Payment) TryBuildMultiCommit() (*invoice.MultiCommit, bool) {
	commits := make([]invoice.Commit, 0, len(p.Transactions))
	for _, tx := range p.Transactions {
		if tx.State != TransactionSucceeded || tx.Commit == nil {
			return nil, false
		}
		commits = append(commits, *tx.Commit)
	}
	mc := &invoice.MultiCommit{
		InvoiceID:        p.InvoiceID,
		Currency:         p.Currency,
		TotalDestPayment: new(big.Int).Set(p.TotalDestPayment),
		Commits:          commits,
	}
	if err := mc.Validate(); err != nil {
		return nil, false
	}
	return mc, true
}

// CommitInvoice is the seller side of closing an invoice: it verifies a
// buyer-presented MultiCommit was genuinely signed by us, then releases one
// CollectSendFundsOp per commit toward whichever friend is holding the
// matching remote pending transaction (spec.md §4.4, and the original
// implementation's verify_multi_commit, which checks every commit's
// signature against the verifying party's OWN public key -- a seller
// confirming it actually produced the commits being presented, not a buyer
// verifying the seller).
func (fd *Funder) CommitInvoice(mc *invoice.MultiCommit) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if err := mc.Validate(); err != nil {
		return err
	}

	type release struct {
		friendPK  ccrypto.PublicKey
		currency  ccrypto.Currency
		requestID ccrypto.Hash
		srcLock   ccrypto.PlainLock
		destLock  ccrypto.PlainLock
	}
	releases := make([]release, 0, len(mc.Commits))

	for _, c := range mc.Commits {
		requestID, destPlainLock, ok := fd.Invoices.ResolveResponse(mc.InvoiceID, c.ResponseHash)
		if !ok {
			return fmt.Errorf("funder: commit response_hash does not match any response we issued for invoice %s", mc.InvoiceID)
		}
		if !invoice.VerifyCommit(c, fd.LocalPK, mc.InvoiceID, mc.TotalDestPayment, mc.Currency) {
			return fmt.Errorf("funder: commit for request %s does not verify against our own key", requestID)
		}

		friendPK, ok := fd.findRemotePendingFriend(mc.Currency, requestID)
		if !ok {
			return goerrors.Errorf("funder: no friend holds remote pending transaction %s", requestID)
		}
		releases = append(releases, release{
			friendPK:  friendPK,
			currency:  mc.Currency,
			requestID: requestID,
			srcLock:   c.SrcPlainLock,
			destLock:  destPlainLock,
		})
	}

	for _, r := range releases {
		fd.Friends[r.friendPK].QueuesFor(r.currency).EnqueueBackwards(&mwire.CollectSendFundsOp{
			CurrencyField: r.currency,
			RequestID:     r.requestID,
			SrcPlainLock:  r.srcLock,
			DestPlainLock: r.destLock,
		})
	}
	return fd.Invoices.MarkCommitted(mc.InvoiceID)
}

// findRemotePendingFriend scans every friend's consistent channel for the
// one holding requestID as a remote pending transaction in currency.
func (fd *Funder) findRemotePendingFriend(currency ccrypto.Currency, requestID ccrypto.Hash) (ccrypto.PublicKey, bool) {
	for pk, f := range fd.Friends {
		if f.ChannelStatus.Kind != friend.ChannelConsistent {
			continue
		}
		unit := f.ChannelStatus.Channel.GetOrCreateUnit(currency)
		if _, ok := unit.RemotePendingTransactions[requestID]; ok {
			return pk, true
		}
	}
	return ccrypto.PublicKey{}, false
}
