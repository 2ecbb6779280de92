package funder

import (
	"fmt"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/mwire"
	"github.com/creditmesh/meshnode/tokenchannel"
)

// HandleIncomingMoveToken implements spec.md §4.3/§4.4's receive path for
// one MoveToken from remotePK: it runs the channel's four-step algorithm,
// then, if every operation applied, dispatches each op to the matching
// Handle* reaction. On OutcomeInconsistent it marks the friend and cancels
// everything in flight on it; the caller is responsible for sending
// resetTerms back to the peer.
func (fd *Funder) HandleIncomingMoveToken(remotePK ccrypto.PublicKey, m *mwire.MoveToken) (outcome tokenchannel.Outcome, resetTerms *mwire.ResetTerms, retransmit *mwire.MoveToken, err error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	f, ok := fd.Friends[remotePK]
	if !ok {
		return 0, nil, nil, fmt.Errorf("funder: unknown friend %s", remotePK)
	}
	if f.ChannelStatus.Kind != friend.ChannelConsistent {
		return 0, nil, nil, fmt.Errorf("funder: friend %s has no consistent channel", remotePK)
	}

	result, err := f.ChannelStatus.Channel.ProcessIncoming(m)
	if err != nil {
		return 0, nil, nil, err
	}

	switch result.Outcome {
	case tokenchannel.OutcomeInconsistent:
		fd.cancelOnInconsistencyLocked(f)
		f.MarkInconsistent(result.ResetTerms)
		return result.Outcome, result.ResetTerms, nil, nil

	case tokenchannel.OutcomeRetransmit:
		return result.Outcome, nil, result.Retransmit, nil

	case tokenchannel.OutcomeDuplicateIgnored:
		return result.Outcome, nil, nil, nil
	}

	if relays, ok := tokenchannel.RemoteRelays(m); ok {
		f.RemoteRelays = relays
	}
	f.Relays.CompleteIfAcked(m.OldToken)

	for _, op := range m.Operations {
		if err := fd.dispatchIncomingOpLocked(f, op); err != nil {
			return result.Outcome, nil, nil, err
		}
	}
	return result.Outcome, nil, nil, nil
}

func (fd *Funder) dispatchIncomingOpLocked(f *friend.Friend, op mwire.Op) error {
	switch o := op.(type) {
	case *mwire.RequestSendFundsOp:
		return fd.handleRequestSendFundsLocked(f, o.Currency(), o)
	case *mwire.ResponseSendFundsOp:
		return fd.handleResponseSendFundsLocked(o.Currency(), o)
	case *mwire.CancelSendFundsOp:
		return fd.handleCancelSendFundsLocked(o.Currency(), o)
	case *mwire.CollectSendFundsOp:
		return fd.handleCollectSendFundsLocked(o.Currency(), o)
	default:
		// EnableRequests/DisableRequests/SetRemoteMaxDebt only mutate the
		// mutual-credit unit; ProcessIncoming already applied that.
		return nil
	}
}
