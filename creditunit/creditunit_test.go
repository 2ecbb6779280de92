package creditunit

import (
	"math/big"
	"testing"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/stretchr/testify/require"
)

func mkPK(b byte) ccrypto.PublicKey {
	var pk ccrypto.PublicKey
	pk[0] = b
	return pk
}

func TestEnableDisableRequests(t *testing.T) {
	u := New("FST1")

	require.NoError(t, EnableRequestsOp{}.Apply(u, Outgoing))
	require.Equal(t, StatusOpen, u.LocalRequestsStatus)
	require.Error(t, EnableRequestsOp{}.Apply(u, Outgoing), "double enable must fail")

	require.NoError(t, DisableRequestsOp{}.Apply(u, Outgoing))
	require.Equal(t, StatusClosed, u.LocalRequestsStatus)
	require.Error(t, DisableRequestsOp{}.Apply(u, Outgoing), "double disable must fail")
}

func TestSetRemoteMaxDebtBounds(t *testing.T) {
	u := New("FST1")

	require.NoError(t, SetRemoteMaxDebtOp{X: ccrypto.MaxLocalMaxDebt}.Apply(u, Outgoing))

	tooLarge := new(big.Int).Add(ccrypto.MaxLocalMaxDebt, big.NewInt(1))
	require.Error(t, SetRemoteMaxDebtOp{X: tooLarge}.Apply(u, Outgoing))
}

func TestRequestSendFundsRequiresOpenRecipient(t *testing.T) {
	u := New("FST1")
	route := Route{mkPK(1), mkPK(2)}

	args := RequestSendFundsArgs{
		RequestID:        ccrypto.Sum512_256([]byte("r1")),
		Route:            route,
		SrcHashedLock:    ccrypto.Sum512_256([]byte("src")),
		DestPayment:      big.NewInt(8),
		TotalDestPayment: big.NewInt(8),
		InvoiceID:        ccrypto.Sum512_256([]byte("inv")),
		LeftFees:         big.NewInt(0),
	}

	// Peer's requests_status is closed by default.
	require.Error(t, RequestSendFundsOp{Args: args}.Apply(u, Outgoing))

	require.NoError(t, EnableRequestsOp{}.Apply(u, Incoming)) // peer opens, reported to us
	require.NoError(t, SetRemoteMaxDebtOp{X: big.NewInt(100)}.Apply(u, Incoming))
	require.NoError(t, RequestSendFundsOp{Args: args}.Apply(u, Outgoing))

	require.Len(t, u.LocalPendingTransactions, 1)
	require.Equal(t, big.NewInt(8), u.LocalPendingDebt)

	// Duplicate request id fails.
	require.Error(t, RequestSendFundsOp{Args: args}.Apply(u, Outgoing))
}

func TestRequestSendFundsCeilingExceeded(t *testing.T) {
	u := New("FST1")
	require.NoError(t, EnableRequestsOp{}.Apply(u, Incoming))
	require.NoError(t, SetRemoteMaxDebtOp{X: big.NewInt(5)}.Apply(u, Incoming))

	args := RequestSendFundsArgs{
		RequestID:        ccrypto.Sum512_256([]byte("r1")),
		Route:            Route{mkPK(1), mkPK(2)},
		SrcHashedLock:    ccrypto.Sum512_256([]byte("src")),
		DestPayment:      big.NewInt(6),
		TotalDestPayment: big.NewInt(6),
		InvoiceID:        ccrypto.Sum512_256([]byte("inv")),
		LeftFees:         big.NewInt(0),
	}
	require.Error(t, RequestSendFundsOp{Args: args}.Apply(u, Outgoing))
	require.Empty(t, u.LocalPendingTransactions)
	require.Equal(t, big.NewInt(0), u.LocalPendingDebt)
}

func TestRouteValidation(t *testing.T) {
	require.Error(t, Route{}.Validate())
	require.Error(t, Route{mkPK(1)}.Validate())

	longRoute := make(Route, MaxRouteLen)
	for i := range longRoute {
		longRoute[i] = mkPK(byte(i + 1))
	}
	require.NoError(t, longRoute.Validate())

	tooLong := make(Route, MaxRouteLen+1)
	for i := range tooLong {
		tooLong[i] = mkPK(byte(i + 1))
	}
	require.Error(t, tooLong.Validate())

	require.Error(t, Route{mkPK(1), mkPK(1)}.Validate(), "2-cycle must be rejected")
	require.NoError(t, Route{mkPK(1), mkPK(2), mkPK(1)}.Validate(), "3-cycle must be accepted")
}

func TestRequestResponseCollectRoundTrip(t *testing.T) {
	destPriv, err := ccrypto.NewPrivateKey()
	require.NoError(t, err)
	signer := ccrypto.NewLocalSigner()
	signer.AddKey(destPriv)
	destPK := destPriv.PubKey()

	u := New("FST1")
	require.NoError(t, EnableRequestsOp{}.Apply(u, Incoming))
	require.NoError(t, SetRemoteMaxDebtOp{X: big.NewInt(100)}.Apply(u, Incoming))

	srcLock, err := ccrypto.NewPlainLock()
	require.NoError(t, err)
	destLock, err := ccrypto.NewPlainLock()
	require.NoError(t, err)

	requestID := ccrypto.Sum512_256([]byte("r1"))
	args := RequestSendFundsArgs{
		RequestID:        requestID,
		Route:            Route{mkPK(9), destPK},
		SrcHashedLock:    srcLock.Hash(),
		DestPayment:      big.NewInt(8),
		TotalDestPayment: big.NewInt(8),
		InvoiceID:        ccrypto.Sum512_256([]byte("inv")),
		LeftFees:         big.NewInt(0),
	}
	require.NoError(t, RequestSendFundsOp{Args: args}.Apply(u, Outgoing))

	nonce := ccrypto.Sum512_256([]byte("nonce"))
	buf := ccrypto.ResponseSignatureBuff(requestID, nonce, srcLock.Hash(), destLock.Hash(),
		args.DestPayment, args.TotalDestPayment, args.InvoiceID, u.Currency)
	sig, err := signer.Sign(destPK, buf)
	require.NoError(t, err)

	respArgs := ResponseSendFundsArgs{
		RequestID:      requestID,
		DestHashedLock: destLock.Hash(),
		RandNonce:      nonce,
		Signature:      sig,
	}
	require.NoError(t, ResponseSendFundsOp{Args: respArgs}.Apply(u, Incoming))
	require.Equal(t, StageResponse, u.LocalPendingTransactions[requestID].Stage)

	collectArgs := CollectSendFundsArgs{
		RequestID:     requestID,
		SrcPlainLock:  srcLock,
		DestPlainLock: destLock,
	}
	require.NoError(t, CollectSendFundsOp{Args: collectArgs}.Apply(u, Incoming))
	require.Equal(t, big.NewInt(-8), u.Balance)
	require.Empty(t, u.LocalPendingTransactions)
	require.Equal(t, 0, u.LocalPendingDebt.Cmp(big.NewInt(0)))
}

func TestCancelReleasesReservation(t *testing.T) {
	u := New("FST1")
	require.NoError(t, EnableRequestsOp{}.Apply(u, Incoming))
	require.NoError(t, SetRemoteMaxDebtOp{X: big.NewInt(100)}.Apply(u, Incoming))

	requestID := ccrypto.Sum512_256([]byte("r1"))
	args := RequestSendFundsArgs{
		RequestID:        requestID,
		Route:            Route{mkPK(9), mkPK(10)},
		SrcHashedLock:    ccrypto.Sum512_256([]byte("src")),
		DestPayment:      big.NewInt(6),
		TotalDestPayment: big.NewInt(6),
		InvoiceID:        ccrypto.Sum512_256([]byte("inv")),
		LeftFees:         big.NewInt(0),
	}
	require.NoError(t, RequestSendFundsOp{Args: args}.Apply(u, Outgoing))
	require.NoError(t, CancelSendFundsOp{RequestID: requestID}.Apply(u, Incoming))

	require.Empty(t, u.LocalPendingTransactions)
	require.Equal(t, 0, u.LocalPendingDebt.Cmp(big.NewInt(0)))
	require.Equal(t, big.NewInt(0), u.Balance)
}

func TestCloneIsIndependent(t *testing.T) {
	u := New("FST1")
	require.NoError(t, EnableRequestsOp{}.Apply(u, Incoming))
	require.NoError(t, SetRemoteMaxDebtOp{X: big.NewInt(100)}.Apply(u, Incoming))

	clone := u.Clone()
	requestID := ccrypto.Sum512_256([]byte("r1"))
	args := RequestSendFundsArgs{
		RequestID:        requestID,
		Route:            Route{mkPK(9), mkPK(10)},
		SrcHashedLock:    ccrypto.Sum512_256([]byte("src")),
		DestPayment:      big.NewInt(6),
		TotalDestPayment: big.NewInt(6),
		InvoiceID:        ccrypto.Sum512_256([]byte("inv")),
		LeftFees:         big.NewInt(0),
	}
	require.NoError(t, RequestSendFundsOp{Args: args}.Apply(clone, Outgoing))

	require.Empty(t, u.LocalPendingTransactions, "mutating the clone must not affect the original")
	require.Len(t, clone.LocalPendingTransactions, 1)
}
