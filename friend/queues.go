package friend

import (
	"math/big"

	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/mwire"
)

// CurrencyQueues is the per-currency outgoing state of spec.md §3/§4.4:
// three priority-ordered FIFO queues of not-yet-sent operations, plus the
// two pieces of desired state ("wanted") that get folded into the next
// outgoing batch as SetRemoteMaxDebt/Enable/DisableRequests ops.
type CurrencyQueues struct {
	// PendingBackwardsOps carries ResponseSendFunds/CancelSendFunds/
	// CollectSendFunds: replies flowing back along a route. These always
	// drain first, since a stuck response blocks credit all along its
	// route.
	PendingBackwardsOps []mwire.Op

	// PendingUserRequests carries RequestSendFunds that originated
	// locally (this node is the payer). These drain second.
	PendingUserRequests []mwire.Op

	// PendingRequests carries RequestSendFunds being forwarded on behalf
	// of another friend. These drain last.
	PendingRequests []mwire.Op

	// WantedRemoteMaxDebt is the debt ceiling we intend to grant this
	// friend for this currency; nil until set explicitly.
	WantedRemoteMaxDebt *big.Int

	// WantedLocalRequestsStatus is the gate we intend to present to this
	// friend for accepting forwarded requests in this currency.
	WantedLocalRequestsStatus creditunit.RequestsStatus
}

func newCurrencyQueues() *CurrencyQueues {
	return &CurrencyQueues{
		WantedRemoteMaxDebt:       big.NewInt(0),
		WantedLocalRequestsStatus: creditunit.StatusClosed,
	}
}

// EnqueueBackwards appends a backwards-flowing op (response/cancel/collect).
func (q *CurrencyQueues) EnqueueBackwards(op mwire.Op) {
	q.PendingBackwardsOps = append(q.PendingBackwardsOps, op)
}

// EnqueueUserRequest appends a locally-originated RequestSendFunds.
func (q *CurrencyQueues) EnqueueUserRequest(op mwire.Op) {
	q.PendingUserRequests = append(q.PendingUserRequests, op)
}

// EnqueueForwarded appends a RequestSendFunds being relayed for another
// friend.
func (q *CurrencyQueues) EnqueueForwarded(op mwire.Op) {
	q.PendingRequests = append(q.PendingRequests, op)
}

// Empty reports whether this currency has nothing left to send.
func (q *CurrencyQueues) Empty() bool {
	return len(q.PendingBackwardsOps) == 0 && len(q.PendingUserRequests) == 0 && len(q.PendingRequests) == 0
}

// DrainUpTo removes and returns up to maxOps operations for the next
// outgoing batch, in the priority order of spec.md §4.4's "Queue drain and
// send": backwards ops first, then user-originated requests, then
// forwarded requests.
func (q *CurrencyQueues) DrainUpTo(maxOps int) []mwire.Op {
	var out []mwire.Op
	drain := func(src *[]mwire.Op) {
		for len(out) < maxOps && len(*src) > 0 {
			out = append(out, (*src)[0])
			*src = (*src)[1:]
		}
	}
	drain(&q.PendingBackwardsOps)
	drain(&q.PendingUserRequests)
	drain(&q.PendingRequests)
	return out
}

// DropCancellable clears the user-request and forwarded-request queues,
// returning what was dropped so the caller can cancel them upstream/back
// to the local app (spec.md §4.4: "Cancellation on unfriending, disabling,
// or resetting a friend"). Backwards ops are never dropped this way: a
// reply already owed to someone else must still go out.
func (q *CurrencyQueues) DropCancellable() (userRequests, forwarded []mwire.Op) {
	userRequests, q.PendingUserRequests = q.PendingUserRequests, nil
	forwarded, q.PendingRequests = q.PendingRequests, nil
	return userRequests, forwarded
}
