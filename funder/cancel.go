package funder

import (
	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/mwire"
)

// cancelFriendLocked implements spec.md §4.4's unfriend cancellation walk:
// every request we sent to f that is still pending must be canceled
// upstream (or fail our own payment, if we originated it), and every
// request f sent us that we relayed onward is now unanswerable, so its
// forwarding entry is dropped. fd.mu must already be held.
func (fd *Funder) cancelFriendLocked(f *friend.Friend) {
	f.WalkPendingLocalTransactions(func(currency ccrypto.Currency, pr *creditunit.PendingRequest) {
		fd.cancelUpstreamOrFailLocked(pr.RequestID, currency)
	})

	if f.ChannelStatus.Kind == friend.ChannelConsistent {
		for _, unit := range f.ChannelStatus.Channel.Units {
			for requestID := range unit.RemotePendingTransactions {
				delete(fd.Forwarding, requestID)
			}
		}
	}

	userReqs, forwarded := f.Disable()
	fd.cancelDroppedLocked(f, userReqs, forwarded)
}

// cancelDroppedLocked cancels ops that were already removed from a friend's
// queues (by Disable, or by an unfriend), without consulting that friend's
// channel state again.
func (fd *Funder) cancelDroppedLocked(f *friend.Friend, userRequests, forwarded []mwire.Op) {
	for _, op := range userRequests {
		req, ok := op.(*mwire.RequestSendFundsOp)
		if !ok {
			continue
		}
		_ = fd.failOwnTransaction(req.RequestID)
	}

	for _, op := range forwarded {
		req, ok := op.(*mwire.RequestSendFundsOp)
		if !ok {
			continue
		}
		fd.cancelUpstreamOrFailLocked(req.RequestID, req.CurrencyField)
	}
}

// cancelUpstreamOrFailLocked sends a CancelSendFunds back to whichever
// friend originated requestID, or fails our own payment transaction if we
// originated it ourselves. fd.mu must already be held.
func (fd *Funder) cancelUpstreamOrFailLocked(requestID ccrypto.Hash, _ ccrypto.Currency) {
	entry, ok := fd.Forwarding[requestID]
	if !ok {
		_ = fd.failOwnTransaction(requestID)
		return
	}
	delete(fd.Forwarding, requestID)

	origin, ok := fd.Friends[entry.OriginPK]
	if !ok {
		return
	}
	origin.QueuesFor(entry.Currency).EnqueueBackwards(&mwire.CancelSendFundsOp{
		CurrencyField: entry.Currency,
		RequestID:     requestID,
	})
}

// cancelOnInconsistencyLocked runs the same cancellation walk as unfriending,
// but leaves the friend itself in place -- used when a channel transitions
// to Inconsistent and every request in flight on it can no longer be
// answered (spec.md §4.3's inconsistency recovery).
func (fd *Funder) cancelOnInconsistencyLocked(f *friend.Friend) {
	f.WalkPendingLocalTransactions(func(currency ccrypto.Currency, pr *creditunit.PendingRequest) {
		fd.cancelUpstreamOrFailLocked(pr.RequestID, currency)
	})
	if f.ChannelStatus.Kind == friend.ChannelConsistent {
		for _, unit := range f.ChannelStatus.Channel.Units {
			for requestID := range unit.RemotePendingTransactions {
				delete(fd.Forwarding, requestID)
			}
		}
	}
}
