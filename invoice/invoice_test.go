package invoice

import (
	"math/big"
	"testing"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/stretchr/testify/require"
)

func TestClaimRecordResolveRoundTrip(t *testing.T) {
	b := NewBook()
	invoiceID := ccrypto.Sum512_256([]byte("inv-1"))
	requestID := ccrypto.Sum512_256([]byte("req-1"))

	require.NoError(t, b.AddInvoice(invoiceID, "FST1", big.NewInt(100)))

	_, ok, err := b.ClaimForResponse("FST2", invoiceID, requestID, big.NewInt(100))
	require.NoError(t, err)
	require.False(t, ok, "wrong currency must not match")

	lock, ok, err := b.ClaimForResponse("FST1", invoiceID, requestID, big.NewInt(100))
	require.NoError(t, err)
	require.True(t, ok)

	var randNonce ccrypto.Hash
	randNonce[0] = 7
	require.NoError(t, b.RecordResponse(invoiceID, requestID, randNonce))

	responseHash := ccrypto.ResponseHash(requestID, randNonce)
	gotRequestID, gotLock, ok := b.ResolveResponse(invoiceID, responseHash)
	require.True(t, ok)
	require.Equal(t, requestID, gotRequestID)
	require.Equal(t, lock, gotLock)

	require.NoError(t, b.MarkCommitted(invoiceID))
	_, _, ok = b.ResolveResponse(invoiceID, ccrypto.Sum512_256([]byte("unrelated")))
	require.False(t, ok)
}

func TestClaimForResponseRejectsDuplicateAndClosedInvoice(t *testing.T) {
	b := NewBook()
	invoiceID := ccrypto.Sum512_256([]byte("inv-2"))
	requestID := ccrypto.Sum512_256([]byte("req-2"))
	require.NoError(t, b.AddInvoice(invoiceID, "FST1", big.NewInt(50)))

	_, ok, err := b.ClaimForResponse("FST1", invoiceID, requestID, big.NewInt(50))
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = b.ClaimForResponse("FST1", invoiceID, requestID, big.NewInt(50))
	require.Error(t, err, "duplicate request id for the same invoice must fail")

	require.NoError(t, b.CancelInvoice(invoiceID))
	_, ok, err = b.ClaimForResponse("FST1", invoiceID, ccrypto.Sum512_256([]byte("req-3")), big.NewInt(50))
	require.NoError(t, err)
	require.False(t, ok, "a canceled invoice must not match further requests")
}

func TestMultiCommitValidateSum(t *testing.T) {
	mc := &MultiCommit{
		TotalDestPayment: big.NewInt(30),
		Commits: []Commit{
			{DestPayment: big.NewInt(10)},
			{DestPayment: big.NewInt(20)},
		},
	}
	require.NoError(t, mc.Validate())

	mc.Commits[1].DestPayment = big.NewInt(5)
	require.Error(t, mc.Validate())
}

func TestCommitSignatureVerifiesAndReceiptAssembles(t *testing.T) {
	priv, err := ccrypto.NewPrivateKey()
	require.NoError(t, err)
	signer := ccrypto.NewLocalSigner()
	signer.AddKey(priv)
	sellerPK := priv.PubKey()

	requestID := ccrypto.Sum512_256([]byte("req"))
	randNonce := ccrypto.Sum512_256([]byte("nonce"))
	responseHash := ccrypto.ResponseHash(requestID, randNonce)

	srcLock, err := ccrypto.NewPlainLock()
	require.NoError(t, err)
	destLock, err := ccrypto.NewPlainLock()
	require.NoError(t, err)
	destHashed := destLock.Hash()

	invoiceID := ccrypto.Sum512_256([]byte("invoice"))
	total := big.NewInt(42)

	buf := ccryptoCommitBuff(responseHash, srcLock, destHashed, big.NewInt(42), total, invoiceID, "FST1")
	sig, err := signer.Sign(sellerPK, buf)
	require.NoError(t, err)

	c := Commit{
		ResponseHash:   responseHash,
		DestPayment:    big.NewInt(42),
		SrcPlainLock:   srcLock,
		DestHashedLock: destHashed,
		Signature:      sig,
	}
	require.True(t, VerifyCommit(c, sellerPK, invoiceID, total, "FST1"))

	receipt, err := AssembleReceipt(c, invoiceID, destLock, total)
	require.NoError(t, err)
	require.True(t, VerifyReceipt(receipt, sellerPK, "FST1"))

	_, err = AssembleReceipt(c, invoiceID, srcLock /* wrong lock */, total)
	require.Error(t, err)
}

func ccryptoCommitBuff(responseHash ccrypto.Hash, srcPlainLock ccrypto.PlainLock, destHashedLock ccrypto.Hash, destPayment, totalDestPayment *big.Int, invoiceID ccrypto.Hash, currency ccrypto.Currency) []byte {
	return ccrypto.CommitSignatureBuff(responseHash, srcPlainLock, destHashedLock, destPayment, totalDestPayment, invoiceID, currency)
}
