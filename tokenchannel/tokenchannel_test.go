package tokenchannel

import (
	"math/big"
	"testing"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/mwire"
	"github.com/stretchr/testify/require"
)

func twoSides(t *testing.T) (pkA, pkB ccrypto.PublicKey, signerA, signerB *ccrypto.LocalSigner) {
	privA, err := ccrypto.NewPrivateKey()
	require.NoError(t, err)
	privB, err := ccrypto.NewPrivateKey()
	require.NoError(t, err)

	signerA = ccrypto.NewLocalSigner()
	signerA.AddKey(privA)
	signerB = ccrypto.NewLocalSigner()
	signerB.AddKey(privB)

	return privA.PubKey(), privB.PubKey(), signerA, signerB
}

func TestMoveTokenRoundTripEnablesRemoteSide(t *testing.T) {
	pkA, pkB, signerA, _ := twoSides(t)

	chA := New(pkA, pkB)
	chB := New(pkB, pkA)

	handle, err := chA.BeginOutgoing()
	require.NoError(t, err)
	require.NoError(t, handle.QueueOperation(&mwire.EnableRequestsOp{CurrencyField: "FST1"}))

	mt, err := handle.FinalizeOutgoing(signerA)
	require.NoError(t, err)
	require.Equal(t, DirOutgoingPending, chA.Direction)

	result, err := chB.ProcessIncoming(mt)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.Equal(t, DirIncoming, chB.Direction)
	require.Equal(t, creditunit.StatusOpen, chB.Units["FST1"].RemoteRequestsStatus)
	require.Equal(t, chB.PrevNewToken, mt.NewToken)
}

func TestProcessIncomingRejectsBadSignature(t *testing.T) {
	pkA, pkB, signerA, _ := twoSides(t)

	chA := New(pkA, pkB)
	chB := New(pkB, pkA)

	handle, err := chA.BeginOutgoing()
	require.NoError(t, err)
	require.NoError(t, handle.QueueOperation(&mwire.EnableRequestsOp{CurrencyField: "FST1"}))
	mt, err := handle.FinalizeOutgoing(signerA)
	require.NoError(t, err)

	mt.RandNonce[0] ^= 0xff // tamper after signing

	result, err := chB.ProcessIncoming(mt)
	require.NoError(t, err)
	require.Equal(t, OutcomeInconsistent, result.Outcome)
	require.NotNil(t, result.ResetTerms)
}

func TestProcessIncomingDetectsChainBreak(t *testing.T) {
	pkA, pkB, signerA, _ := twoSides(t)

	chA := New(pkA, pkB)
	chB := New(pkB, pkA)
	// Desync chB's expectation of the chain's starting point.
	chB.PrevNewToken = ccrypto.Signature{1}

	handle, err := chA.BeginOutgoing()
	require.NoError(t, err)
	require.NoError(t, handle.QueueOperation(&mwire.EnableRequestsOp{CurrencyField: "FST1"}))
	mt, err := handle.FinalizeOutgoing(signerA)
	require.NoError(t, err)

	result, err := chB.ProcessIncoming(mt)
	require.NoError(t, err)
	require.Equal(t, OutcomeInconsistent, result.Outcome)
	require.Equal(t, uint64(1), result.ResetTerms.InconsistencyCounter)
}

func TestFullRequestResponseCollectOverTwoChannels(t *testing.T) {
	pkA, pkB, signerA, signerB := twoSides(t)

	chA := New(pkA, pkB)
	chB := New(pkB, pkA)

	// A opens its gate, B opens its gate; each grants the other a debt
	// ceiling.
	apply := func(from *Channel, to *Channel, signer ccrypto.Signer, ops []mwire.Op) {
		h, err := from.BeginOutgoing()
		require.NoError(t, err)
		for _, op := range ops {
			require.NoError(t, h.QueueOperation(op))
		}
		mt, err := h.FinalizeOutgoing(signer)
		require.NoError(t, err)
		res, err := to.ProcessIncoming(mt)
		require.NoError(t, err)
		require.Equal(t, OutcomeApplied, res.Outcome)
	}

	apply(chA, chB, signerA, []mwire.Op{
		&mwire.EnableRequestsOp{CurrencyField: "FST1"},
		&mwire.SetRemoteMaxDebtOp{CurrencyField: "FST1", X: big.NewInt(100)},
	})
	apply(chB, chA, signerB, []mwire.Op{
		&mwire.EnableRequestsOp{CurrencyField: "FST1"},
		&mwire.SetRemoteMaxDebtOp{CurrencyField: "FST1", X: big.NewInt(100)},
	})

	srcLock, err := ccrypto.NewPlainLock()
	require.NoError(t, err)
	requestID := ccrypto.Sum512_256([]byte("req-1"))
	invoiceID := ccrypto.Sum512_256([]byte("inv-1"))

	// A requests funds from B (B is both relay-capacity grantor and, here,
	// the destination for simplicity).
	apply(chA, chB, signerA, []mwire.Op{
		&mwire.RequestSendFundsOp{
			CurrencyField:    "FST1",
			RequestID:        requestID,
			Route:            []ccrypto.PublicKey{pkA, pkB},
			SrcHashedLock:    srcLock.Hash(),
			DestPayment:      big.NewInt(10),
			TotalDestPayment: big.NewInt(10),
			InvoiceID:        invoiceID,
			LeftFees:         big.NewInt(0),
		},
	})
	require.Contains(t, chB.Units["FST1"].RemotePendingTransactions, requestID)

	destLock, err := ccrypto.NewPlainLock()
	require.NoError(t, err)
	destHashed := destLock.Hash()

	respBuf := ccrypto.ResponseSignatureBuff(requestID, ccrypto.Sum512_256([]byte("nonce")),
		srcLock.Hash(), destHashed, big.NewInt(10), big.NewInt(10), invoiceID, "FST1")
	sig, err := signerB.Sign(pkB, respBuf)
	require.NoError(t, err)

	apply(chB, chA, signerB, []mwire.Op{
		&mwire.ResponseSendFundsOp{
			CurrencyField:  "FST1",
			RequestID:      requestID,
			DestHashedLock: destHashed,
			RandNonce:      ccrypto.Sum512_256([]byte("nonce")),
			Signature:      sig,
		},
	})
	require.Equal(t, creditunit.StageResponse, chA.Units["FST1"].LocalPendingTransactions[requestID].Stage)

	// The collect travels back from B, the responder, so A first hands the
	// token back with an empty MoveToken.
	apply(chA, chB, signerA, nil)
	apply(chB, chA, signerB, []mwire.Op{
		&mwire.CollectSendFundsOp{
			CurrencyField: "FST1",
			RequestID:     requestID,
			SrcPlainLock:  srcLock,
			DestPlainLock: destLock,
		},
	})

	require.Equal(t, big.NewInt(10), chB.Units["FST1"].Balance)
	require.NotContains(t, chB.Units["FST1"].RemotePendingTransactions, requestID)
}

func TestChooseResetTermsAndApplyReset(t *testing.T) {
	pkA, pkB, _, _ := twoSides(t)

	localTerms := &mwire.ResetTerms{InconsistencyCounter: 1, Balances: []mwire.CurrencyBalance{
		{Currency: "FST1", Balance: big.NewInt(5)},
	}}
	remoteTerms := &mwire.ResetTerms{InconsistencyCounter: 1, Balances: []mwire.CurrencyBalance{
		{Currency: "FST1", Balance: big.NewInt(-5)},
	}}

	chosen := ChooseResetTerms(pkA, pkB, localTerms, remoteTerms)
	if pkA.Less(pkB) {
		require.Equal(t, localTerms, chosen)
	} else {
		require.Equal(t, remoteTerms, chosen)
	}

	ch, err := ApplyReset(pkA, pkB, chosen)
	require.NoError(t, err)
	require.Equal(t, uint64(1), ch.InconsistencyCounter)
	require.Equal(t, DirIncoming, ch.Direction)
	require.Len(t, ch.Units, 1)
}
