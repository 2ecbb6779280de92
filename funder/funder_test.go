package funder

import (
	"math/big"
	"testing"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/invoice"
	"github.com/creditmesh/meshnode/tokenchannel"
	"github.com/stretchr/testify/require"
)

const testCurrency ccrypto.Currency = "FST1"

type node struct {
	priv   *ccrypto.PrivateKey
	pk     ccrypto.PublicKey
	signer *ccrypto.LocalSigner
}

func newNode(t *testing.T) node {
	priv, err := ccrypto.NewPrivateKey()
	require.NoError(t, err)
	signer := ccrypto.NewLocalSigner()
	signer.AddKey(priv)
	return node{priv: priv, pk: priv.PubKey(), signer: signer}
}

// grantCredit opens requests on f's channel toward its peer in both
// directions and grants a generous debt ceiling, bypassing the MoveToken
// handshake so these tests can focus on funder-level routing logic (the
// handshake itself is covered by tokenchannel's own tests). It also syncs
// the friend's wanted state to match, so BuildOutgoing does not try to
// re-advertise state that is already in effect.
func grantCredit(f *friend.Friend, currency ccrypto.Currency, localMaxDebt, remoteMaxDebt *big.Int) {
	unit := f.ChannelStatus.Channel.GetOrCreateUnit(currency)
	unit.LocalMaxDebt = localMaxDebt
	unit.RemoteMaxDebt = remoteMaxDebt
	unit.LocalRequestsStatus = creditunit.StatusOpen
	unit.RemoteRequestsStatus = creditunit.StatusOpen

	q := f.QueuesFor(currency)
	q.WantedRemoteMaxDebt = new(big.Int).Set(remoteMaxDebt)
	q.WantedLocalRequestsStatus = creditunit.StatusOpen
}

// passToken sends an empty MoveToken on f's channel to peer, so that the
// peer holds the token and may send next.
func passToken(t *testing.T, f *friend.Friend, signer ccrypto.Signer, fromPK ccrypto.PublicKey, peer *Funder) {
	h, err := f.ChannelStatus.Channel.BeginOutgoing()
	require.NoError(t, err)
	mt, err := h.FinalizeOutgoing(signer)
	require.NoError(t, err)
	outcome, _, _, err := peer.HandleIncomingMoveToken(fromPK, mt)
	require.NoError(t, err)
	require.Equal(t, tokenchannel.OutcomeApplied, outcome)
}

// TestThreeHopPaymentRoundTrip drives a full buyer(A) -> relay(B) ->
// seller(C) payment through RequestSendFunds/ResponseSendFunds/
// CollectSendFunds and a single-commit MultiCommit, exactly as spec.md
// §4.4 describes it, using BuildOutgoing/HandleIncomingMoveToken to move
// each hop's MoveToken the way two real nodes would.
func TestThreeHopPaymentRoundTrip(t *testing.T) {
	a := newNode(t)
	b := newNode(t)
	c := newNode(t)

	books := invoice.NewBook()

	fdA := New(a.pk, a.signer, nil)
	fdB := New(b.pk, b.signer, nil)
	fdC := New(c.pk, c.signer, books)

	friendAB := fdA.AddFriend(b.pk, "b")
	friendBA := fdB.AddFriend(a.pk, "a")
	friendBC := fdB.AddFriend(c.pk, "c")
	friendCB := fdC.AddFriend(b.pk, "b")

	big1000 := big.NewInt(1000)
	grantCredit(friendAB, testCurrency, big1000, big1000)
	grantCredit(friendBA, testCurrency, big1000, big1000)
	grantCredit(friendBC, testCurrency, big1000, big1000)
	grantCredit(friendCB, testCurrency, big1000, big1000)

	invoiceID := ccrypto.Sum512_256([]byte("invoice-1"))
	totalDestPayment := big.NewInt(100)
	require.NoError(t, books.AddInvoice(invoiceID, testCurrency, totalDestPayment))

	_, err := fdA.CreatePayment(invoiceID, testCurrency, totalDestPayment)
	require.NoError(t, err)

	route := creditunit.Route{a.pk, b.pk, c.pk}
	reqOp, err := fdA.CreateTransaction(invoiceID, route, totalDestPayment, big.NewInt(0))
	require.NoError(t, err)
	requestID := reqOp.RequestID

	// A -> B: the RequestSendFunds.
	mtReq, _, err := fdA.BuildOutgoing(friendAB)
	require.NoError(t, err)
	require.NotNil(t, mtReq)

	outcome, resetTerms, _, err := fdB.HandleIncomingMoveToken(a.pk, mtReq)
	require.NoError(t, err)
	require.Nil(t, resetTerms)
	require.Equal(t, tokenchannel.OutcomeApplied, outcome)

	// B -> C: the forwarded RequestSendFunds.
	mtFwd, _, err := fdB.BuildOutgoing(friendBC)
	require.NoError(t, err)
	require.NotNil(t, mtFwd)

	outcome, resetTerms, _, err = fdC.HandleIncomingMoveToken(b.pk, mtFwd)
	require.NoError(t, err)
	require.Nil(t, resetTerms)
	require.Equal(t, tokenchannel.OutcomeApplied, outcome)

	// C -> B: the ResponseSendFunds.
	mtResp, _, err := fdC.BuildOutgoing(friendCB)
	require.NoError(t, err)
	require.NotNil(t, mtResp)

	_, _, _, err = fdB.HandleIncomingMoveToken(c.pk, mtResp)
	require.NoError(t, err)

	// B -> A: the relayed ResponseSendFunds.
	mtRespBack, _, err := fdB.BuildOutgoing(friendBA)
	require.NoError(t, err)
	require.NotNil(t, mtRespBack)

	_, _, _, err = fdA.HandleIncomingMoveToken(b.pk, mtRespBack)
	require.NoError(t, err)

	tx, payment := fdA.findTransaction(requestID)
	require.NotNil(t, tx)
	require.Equal(t, TransactionSucceeded, tx.State)

	mc, ok := payment.TryBuildMultiCommit()
	require.True(t, ok)

	require.NoError(t, fdC.CommitInvoice(mc))

	// The collects travel back toward the buyer, so each channel's token
	// first returns to its downstream side: B hands it to C, A hands it to B.
	passToken(t, friendBC, b.signer, b.pk, fdC)
	passToken(t, friendAB, a.signer, a.pk, fdB)

	// C -> B: the CollectSendFunds.
	mtCollect, _, err := fdC.BuildOutgoing(friendCB)
	require.NoError(t, err)
	require.NotNil(t, mtCollect)

	_, _, _, err = fdB.HandleIncomingMoveToken(c.pk, mtCollect)
	require.NoError(t, err)

	// B -> A: the relayed CollectSendFunds.
	mtCollectBack, _, err := fdB.BuildOutgoing(friendBA)
	require.NoError(t, err)
	require.NotNil(t, mtCollectBack)

	_, _, _, err = fdA.HandleIncomingMoveToken(b.pk, mtCollectBack)
	require.NoError(t, err)

	finalUnitAB := friendAB.ChannelStatus.Channel.GetOrCreateUnit(testCurrency)
	require.Equal(t, big.NewInt(-100), finalUnitAB.Balance)
	require.Empty(t, finalUnitAB.LocalPendingTransactions)

	finalUnitCB := friendCB.ChannelStatus.Channel.GetOrCreateUnit(testCurrency)
	require.Equal(t, big.NewInt(100), finalUnitCB.Balance)
}

// TestDestinationRejectsUnknownInvoice checks the no_matching_invoice
// rejection path of spec.md §4.4: a RequestSendFunds naming an invoice_id
// the destination never opened comes back as a CancelSendFunds instead of
// a response, and the rejection is counted.
func TestDestinationRejectsUnknownInvoice(t *testing.T) {
	a := newNode(t)
	b := newNode(t)

	books := invoice.NewBook()
	fdA := New(a.pk, a.signer, nil)
	fdB := New(b.pk, b.signer, books)

	friendAB := fdA.AddFriend(b.pk, "b")
	friendBA := fdB.AddFriend(a.pk, "a")

	big1000 := big.NewInt(1000)
	grantCredit(friendAB, testCurrency, big1000, big1000)
	grantCredit(friendBA, testCurrency, big1000, big1000)

	unknownInvoiceID := ccrypto.Sum512_256([]byte("never-opened"))
	totalDestPayment := big.NewInt(50)

	_, err := fdA.CreatePayment(unknownInvoiceID, testCurrency, totalDestPayment)
	require.NoError(t, err)

	route := creditunit.Route{a.pk, b.pk}
	reqOp, err := fdA.CreateTransaction(unknownInvoiceID, route, totalDestPayment, big.NewInt(0))
	require.NoError(t, err)

	mtReq, _, err := fdA.BuildOutgoing(friendAB)
	require.NoError(t, err)
	require.NotNil(t, mtReq)

	outcome, _, _, err := fdB.HandleIncomingMoveToken(a.pk, mtReq)
	require.NoError(t, err)
	require.Equal(t, tokenchannel.OutcomeApplied, outcome)

	mtCancel, _, err := fdB.BuildOutgoing(friendBA)
	require.NoError(t, err)
	require.NotNil(t, mtCancel)
	require.Len(t, mtCancel.Operations, 1)

	_, _, _, err = fdA.HandleIncomingMoveToken(b.pk, mtCancel)
	require.NoError(t, err)

	tx, _ := fdA.findTransaction(reqOp.RequestID)
	require.NotNil(t, tx)
	require.Equal(t, TransactionFailed, tx.State)

	finalUnit := friendAB.ChannelStatus.Channel.GetOrCreateUnit(testCurrency)
	require.Equal(t, big.NewInt(0), finalUnit.Balance)
	require.Empty(t, finalUnit.LocalPendingTransactions)
}

// TestRelayRejectsUnreachableNextHop checks the next_hop_unavailable
// rejection path: a relay whose next-hop friend is disabled cancels the
// forwarded request instead of queuing it onward.
func TestRelayRejectsUnreachableNextHop(t *testing.T) {
	a := newNode(t)
	b := newNode(t)
	c := newNode(t)

	fdA := New(a.pk, a.signer, nil)
	fdB := New(b.pk, b.signer, nil)

	friendAB := fdA.AddFriend(b.pk, "b")
	friendBA := fdB.AddFriend(a.pk, "a")
	friendBC := fdB.AddFriend(c.pk, "c")

	big1000 := big.NewInt(1000)
	grantCredit(friendAB, testCurrency, big1000, big1000)
	grantCredit(friendBA, testCurrency, big1000, big1000)
	grantCredit(friendBC, testCurrency, big1000, big1000)
	require.NoError(t, fdB.DisableFriend(c.pk))

	invoiceID := ccrypto.Sum512_256([]byte("invoice-unreachable"))
	totalDestPayment := big.NewInt(10)

	_, err := fdA.CreatePayment(invoiceID, testCurrency, totalDestPayment)
	require.NoError(t, err)

	route := creditunit.Route{a.pk, b.pk, c.pk}
	reqOp, err := fdA.CreateTransaction(invoiceID, route, totalDestPayment, big.NewInt(0))
	require.NoError(t, err)

	mtReq, _, err := fdA.BuildOutgoing(friendAB)
	require.NoError(t, err)

	_, _, _, err = fdB.HandleIncomingMoveToken(a.pk, mtReq)
	require.NoError(t, err)

	mtCancel, _, err := fdB.BuildOutgoing(friendBA)
	require.NoError(t, err)
	require.NotNil(t, mtCancel)

	_, _, _, err = fdA.HandleIncomingMoveToken(b.pk, mtCancel)
	require.NoError(t, err)

	tx, _ := fdA.findTransaction(reqOp.RequestID)
	require.NotNil(t, tx)
	require.Equal(t, TransactionFailed, tx.State)
}
