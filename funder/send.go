package funder

import (
	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/mwire"
)

// BuildOutgoing implements spec.md §4.4's "Queue drain and send": it drains
// f's per-currency queues (backwards, then user-originated, then forwarded)
// up to MaxOperationsInBatch operations total, folds in any pending debt-
// ceiling/gate changes and relay advertisement, and seals the result into a
// signed MoveToken. mt is nil if there was nothing worth sending;
// tokenWanted reports whether queued operations remain for a later batch.
func (fd *Funder) BuildOutgoing(f *friend.Friend) (mt *mwire.MoveToken, tokenWanted bool, err error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if f.ChannelStatus.Kind != friend.ChannelConsistent {
		return nil, false, nil
	}

	handle, err := f.ChannelStatus.Channel.BeginOutgoing()
	if err != nil {
		return nil, false, err
	}

	budget := MaxOperationsInBatch
	queueStillNonempty := false

	for _, currency := range f.Currencies() {
		q := f.QueuesFor(currency)
		unit := f.ChannelStatus.Channel.GetOrCreateUnit(currency)

		if unit.RemoteMaxDebt.Cmp(q.WantedRemoteMaxDebt) != 0 && budget > 0 {
			if err := handle.QueueOperation(&mwire.SetRemoteMaxDebtOp{
				CurrencyField: currency,
				X:             q.WantedRemoteMaxDebt,
			}); err != nil {
				return nil, false, err
			}
			budget--
		}
		if unit.LocalRequestsStatus != q.WantedLocalRequestsStatus && budget > 0 {
			var op mwire.Op
			if q.WantedLocalRequestsStatus == creditunit.StatusOpen {
				op = &mwire.EnableRequestsOp{CurrencyField: currency}
			} else {
				op = &mwire.DisableRequestsOp{CurrencyField: currency}
			}
			if err := handle.QueueOperation(op); err != nil {
				return nil, false, err
			}
			budget--
		}

		if budget <= 0 {
			if !q.Empty() {
				queueStillNonempty = true
			}
			continue
		}

		drained := q.DrainUpTo(budget)
		for _, op := range drained {
			if err := handle.QueueOperation(op); err != nil {
				return nil, false, err
			}
		}
		budget -= len(drained)
		if !q.Empty() {
			queueStillNonempty = true
		}
	}

	desiredRelays := fd.desiredRelaysLocked()
	var newToken ccrypto.Signature
	advertising := f.Relays.NeedsAdvertise(desiredRelays)
	if advertising {
		handle.SetLocalRelays(desiredRelays)
	}

	if handle.Empty() {
		return nil, false, nil
	}

	mt, err = handle.FinalizeOutgoing(fd.Signer)
	if err != nil {
		return nil, false, err
	}
	newToken = mt.NewToken

	if advertising {
		f.Relays.CommitAdvertise(desiredRelays, newToken)
	}

	fd.Metrics.OutgoingBatchSize.Observe(float64(len(mt.Operations)))
	return mt, queueStillNonempty, nil
}

// desiredRelaysLocked reads the funder's currently-desired local relay set.
// fd.mu must already be held.
func (fd *Funder) desiredRelaysLocked() []mwire.RelayAddress {
	if fd.Clock == nil {
		return nil
	}
	return fd.Clock()
}
