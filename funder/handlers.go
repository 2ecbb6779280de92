package funder

import (
	"crypto/rand"
	"math/big"

	"github.com/davecgh/go-spew/spew"
	goerrors "github.com/go-errors/errors"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/mwire"
)

// HandleRequestSendFunds implements spec.md §4.4's "Handling a
// RequestSendFunds received from friend F": op has already been applied to
// (from, currency)'s mutual-credit unit by tokenchannel.ProcessIncoming (the
// pending debt is reserved); this decides whether we are the destination or
// a relay and queues the right backwards/forwards reaction.
func (fd *Funder) HandleRequestSendFunds(from *friend.Friend, currency ccrypto.Currency, op *mwire.RequestSendFundsOp) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.handleRequestSendFundsLocked(from, currency, op)
}

func (fd *Funder) handleRequestSendFundsLocked(from *friend.Friend, currency ccrypto.Currency, op *mwire.RequestSendFundsOp) error {
	route := creditunit.Route(op.Route)
	idx := route.IndexOf(fd.LocalPK)
	if idx < 0 {
		return goerrors.Errorf("funder: route does not name us")
	}

	if idx == len(route)-1 {
		return fd.handleAsDestinationLocked(from, currency, op)
	}
	return fd.handleAsRelayLocked(from, currency, op, route[idx+1])
}

func (fd *Funder) handleAsDestinationLocked(from *friend.Friend, currency ccrypto.Currency, op *mwire.RequestSendFundsOp) error {
	destPlainLock, ok, err := fd.Invoices.ClaimForResponse(currency, op.InvoiceID, op.RequestID, op.TotalDestPayment)
	if err != nil {
		return err
	}
	if !ok {
		fd.Metrics.RequestsRejected.WithLabelValues("no_matching_invoice").Inc()
		from.QueuesFor(currency).EnqueueBackwards(&mwire.CancelSendFundsOp{
			CurrencyField: currency,
			RequestID:     op.RequestID,
		})
		return nil
	}

	destHashedLock := destPlainLock.Hash()
	var randNonce ccrypto.Hash
	if _, err := rand.Read(randNonce[:]); err != nil {
		return err
	}

	buf := ccrypto.ResponseSignatureBuff(op.RequestID, randNonce, op.SrcHashedLock, destHashedLock,
		op.DestPayment, op.TotalDestPayment, op.InvoiceID, currency)
	sig, err := fd.Signer.Sign(fd.LocalPK, buf)
	if err != nil {
		return err
	}
	if err := fd.Invoices.RecordResponse(op.InvoiceID, op.RequestID, randNonce); err != nil {
		return err
	}

	from.QueuesFor(currency).EnqueueBackwards(&mwire.ResponseSendFundsOp{
		CurrencyField:  currency,
		RequestID:      op.RequestID,
		DestHashedLock: destHashedLock,
		RandNonce:      randNonce,
		Signature:      sig,
	})
	return nil
}

func (fd *Funder) handleAsRelayLocked(from *friend.Friend, currency ccrypto.Currency, op *mwire.RequestSendFundsOp, nextHopPK ccrypto.PublicKey) error {
	reject := func(reason string) {
		log.Debugf("rejecting forwarded request (%s): %s", reason, spew.Sdump(op))
		fd.Metrics.RequestsRejected.WithLabelValues(reason).Inc()
		from.QueuesFor(currency).EnqueueBackwards(&mwire.CancelSendFundsOp{
			CurrencyField: currency,
			RequestID:     op.RequestID,
		})
	}

	next, ok := fd.Friends[nextHopPK]
	if !ok || next.Status != friend.StatusEnabled || next.ChannelStatus.Kind != friend.ChannelConsistent {
		reject("next_hop_unavailable")
		return nil
	}

	amount := new(big.Int).Add(op.DestPayment, op.LeftFees)
	fee := next.Rate.Fee(amount)
	newLeftFees := new(big.Int).Sub(op.LeftFees, fee)
	if newLeftFees.Sign() < 0 {
		reject("insufficient_fee")
		return nil
	}

	forwarded := &mwire.RequestSendFundsOp{
		CurrencyField:    currency,
		RequestID:        op.RequestID,
		Route:            op.Route,
		SrcHashedLock:    op.SrcHashedLock,
		DestPayment:      op.DestPayment,
		TotalDestPayment: op.TotalDestPayment,
		InvoiceID:        op.InvoiceID,
		LeftFees:         newLeftFees,
	}
	if err := checkCanQueue(next.ChannelStatus.Channel, currency, forwarded); err != nil {
		reject("no_capacity")
		return nil
	}

	fd.Forwarding[op.RequestID] = ForwardEntry{OriginPK: from.RemotePK, Currency: currency}
	next.QueuesFor(currency).EnqueueForwarded(forwarded)
	fd.Metrics.RequestsForwarded.Inc()
	return nil
}

// HandleResponseSendFunds implements spec.md §4.4's "Handling a
// ResponseSendFunds": relay it upstream if we were forwarding it, or settle
// the matching open payment transaction if we originated it.
func (fd *Funder) HandleResponseSendFunds(currency ccrypto.Currency, op *mwire.ResponseSendFundsOp) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.handleResponseSendFundsLocked(currency, op)
}

func (fd *Funder) handleResponseSendFundsLocked(currency ccrypto.Currency, op *mwire.ResponseSendFundsOp) error {
	if entry, ok := fd.Forwarding[op.RequestID]; ok {
		origin, ok := fd.Friends[entry.OriginPK]
		if !ok {
			return goerrors.Errorf("funder: forwarding origin %s for request %s no longer exists", entry.OriginPK, op.RequestID)
		}
		origin.QueuesFor(entry.Currency).EnqueueBackwards(&mwire.ResponseSendFundsOp{
			CurrencyField:  entry.Currency,
			RequestID:      op.RequestID,
			DestHashedLock: op.DestHashedLock,
			RandNonce:      op.RandNonce,
			Signature:      op.Signature,
		})
		fd.Metrics.ResponsesRelayed.Inc()
		return nil
	}

	return fd.settleOwnTransactionResponse(currency, op)
}

// HandleCancelSendFunds implements spec.md §4.4's "Handling a
// CancelSendFunds": analogous to Response but restores no balance (the
// reservation was already released by the op itself).
func (fd *Funder) HandleCancelSendFunds(currency ccrypto.Currency, op *mwire.CancelSendFundsOp) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.handleCancelSendFundsLocked(currency, op)
}

func (fd *Funder) handleCancelSendFundsLocked(currency ccrypto.Currency, op *mwire.CancelSendFundsOp) error {
	if entry, ok := fd.Forwarding[op.RequestID]; ok {
		origin, ok := fd.Friends[entry.OriginPK]
		if !ok {
			return goerrors.Errorf("funder: forwarding origin %s for request %s no longer exists", entry.OriginPK, op.RequestID)
		}
		origin.QueuesFor(entry.Currency).EnqueueBackwards(&mwire.CancelSendFundsOp{
			CurrencyField: entry.Currency,
			RequestID:     op.RequestID,
		})
		delete(fd.Forwarding, op.RequestID)
		fd.Metrics.CancelsRelayed.Inc()
		return nil
	}

	return fd.failOwnTransaction(op.RequestID)
}

// HandleCollectSendFunds implements spec.md §4.4's "Handling a
// CollectSendFunds": forward it on the corresponding friend if we are a
// relay (earning our fee as the Apply on that unit runs); if we originated
// the request, the incoming Collect has already settled the unit and
// nothing further happens here.
func (fd *Funder) HandleCollectSendFunds(currency ccrypto.Currency, op *mwire.CollectSendFundsOp) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.handleCollectSendFundsLocked(currency, op)
}

func (fd *Funder) handleCollectSendFundsLocked(currency ccrypto.Currency, op *mwire.CollectSendFundsOp) error {
	entry, ok := fd.Forwarding[op.RequestID]
	if !ok {
		// We originated the request (the seller sends Collects and never
		// receives one); nothing further to do at the funder layer once
		// the CollectSendFunds commits.
		return nil
	}

	origin, ok := fd.Friends[entry.OriginPK]
	if !ok {
		return goerrors.Errorf("funder: forwarding origin %s for request %s no longer exists", entry.OriginPK, op.RequestID)
	}
	origin.QueuesFor(entry.Currency).EnqueueBackwards(&mwire.CollectSendFundsOp{
		CurrencyField: entry.Currency,
		RequestID:     op.RequestID,
		SrcPlainLock:  op.SrcPlainLock,
		DestPlainLock: op.DestPlainLock,
	})
	delete(fd.Forwarding, op.RequestID)
	fd.Metrics.CollectsRelayed.Inc()
	return nil
}
