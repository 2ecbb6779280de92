package friend

import (
	"math/big"
	"testing"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/mwire"
	"github.com/stretchr/testify/require"
)

func mkPK(b byte) ccrypto.PublicKey {
	var pk ccrypto.PublicKey
	pk[0] = b
	return pk
}

func TestRateFee(t *testing.T) {
	r := Rate{Mul: 1 << 31, Add: 5} // half, plus a flat five.
	got := r.Fee(big.NewInt(100))
	require.Equal(t, big.NewInt(55), got)

	zero := Rate{}
	require.Equal(t, big.NewInt(0), zero.Fee(big.NewInt(1000)))
}

func TestCurrencyQueuesDrainPriorityOrder(t *testing.T) {
	q := newCurrencyQueues()

	back := &mwire.CancelSendFundsOp{CurrencyField: "FST1", RequestID: ccrypto.Sum512_256([]byte("back"))}
	user := &mwire.RequestSendFundsOp{CurrencyField: "FST1", RequestID: ccrypto.Sum512_256([]byte("user"))}
	fwd := &mwire.RequestSendFundsOp{CurrencyField: "FST1", RequestID: ccrypto.Sum512_256([]byte("fwd"))}

	q.EnqueueForwarded(fwd)
	q.EnqueueUserRequest(user)
	q.EnqueueBackwards(back)

	drained := q.DrainUpTo(2)
	require.Len(t, drained, 2)
	require.Same(t, back, drained[0])
	require.Same(t, user, drained[1])
	require.True(t, q.Empty() == false)

	rest := q.DrainUpTo(10)
	require.Len(t, rest, 1)
	require.Same(t, fwd, rest[0])
	require.True(t, q.Empty())
}

func TestFriendDisableDrainsCancellableQueues(t *testing.T) {
	f := New(mkPK(1), mkPK(2), "bob")
	q := f.QueuesFor("FST1")

	back := &mwire.CancelSendFundsOp{CurrencyField: "FST1", RequestID: ccrypto.Sum512_256([]byte("back"))}
	user := &mwire.RequestSendFundsOp{CurrencyField: "FST1", RequestID: ccrypto.Sum512_256([]byte("user"))}
	q.EnqueueBackwards(back)
	q.EnqueueUserRequest(user)

	userReqs, forwarded := f.Disable()
	require.Equal(t, StatusDisabled, f.Status)
	require.Len(t, userReqs, 1)
	require.Empty(t, forwarded)
	require.Len(t, q.PendingBackwardsOps, 1, "backwards ops must still be sent after disable")
}

func TestRelayStateTransitions(t *testing.T) {
	rs := NewRelayState()
	require.Equal(t, RelayNeverSent, rs.Kind)

	set1 := []mwire.RelayAddress{{Host: "a.example", Port: 1}}
	require.True(t, rs.NeedsAdvertise(set1))

	tok1 := ccrypto.Signature{1}
	rs.CommitAdvertise(set1, tok1)
	require.Equal(t, RelayLastSent, rs.Kind)
	require.False(t, rs.NeedsAdvertise(set1))

	set2 := []mwire.RelayAddress{{Host: "b.example", Port: 2}}
	require.True(t, rs.NeedsAdvertise(set2))

	tok2 := ccrypto.Signature{2}
	rs.CommitAdvertise(set2, tok2)
	require.Equal(t, RelayTransition, rs.Kind)
	require.Equal(t, set1, rs.Previous)

	rs.CompleteIfAcked(ccrypto.Signature{99}) // wrong token: no-op
	require.Equal(t, RelayTransition, rs.Kind)

	rs.CompleteIfAcked(tok2)
	require.Equal(t, RelayLastSent, rs.Kind)
	require.Nil(t, rs.Previous)
}

func TestFriendWalkPendingLocalTransactions(t *testing.T) {
	f := New(mkPK(1), mkPK(2), "bob")
	unit := f.ChannelStatus.Channel.GetOrCreateUnit("FST1")
	unit.LocalPendingTransactions[ccrypto.Sum512_256([]byte("r1"))] = &creditunit.PendingRequest{
		RequestID:        ccrypto.Sum512_256([]byte("r1")),
		DestPayment:      big.NewInt(1),
		TotalDestPayment: big.NewInt(1),
		LeftFees:         big.NewInt(0),
	}

	var seen int
	f.WalkPendingLocalTransactions(func(currency ccrypto.Currency, pr *creditunit.PendingRequest) {
		seen++
		require.Equal(t, ccrypto.Currency("FST1"), currency)
	})
	require.Equal(t, 1, seen)
}
