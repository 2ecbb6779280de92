package ccrypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseSignatureBuffDeterministic(t *testing.T) {
	requestID := Sum512_256([]byte("request"))
	nonce := Sum512_256([]byte("nonce"))
	src := Sum512_256([]byte("src"))
	dst := Sum512_256([]byte("dst"))
	invoiceID := Sum512_256([]byte("invoice"))

	buf1 := ResponseSignatureBuff(requestID, nonce, src, dst,
		big.NewInt(8), big.NewInt(8), invoiceID, Currency("FST1"))
	buf2 := ResponseSignatureBuff(requestID, nonce, src, dst,
		big.NewInt(8), big.NewInt(8), invoiceID, Currency("FST1"))
	require.Equal(t, buf1, buf2)

	// Flipping a byte of total_dest_payment changes the buffer.
	buf3 := ResponseSignatureBuff(requestID, nonce, src, dst,
		big.NewInt(8), big.NewInt(9), invoiceID, Currency("FST1"))
	require.NotEqual(t, buf1, buf3)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := NewPrivateKey()
	require.NoError(t, err)

	signer := NewLocalSigner()
	signer.AddKey(priv)

	pub := priv.PubKey()
	buf := []byte("hello mesh")

	sig, err := signer.Sign(pub, buf)
	require.NoError(t, err)
	require.True(t, Verify(pub, buf, sig))

	// Flipping a byte of the buffer invalidates the signature.
	tampered := append([]byte{}, buf...)
	tampered[0] ^= 0xff
	require.False(t, Verify(pub, tampered, sig))
}

func TestReceiptBuffFlipByte(t *testing.T) {
	responseHash := Sum512_256([]byte("resp"))
	src, err := NewPlainLock()
	require.NoError(t, err)
	dst, err := NewPlainLock()
	require.NoError(t, err)
	invoiceID := Sum512_256([]byte("invoice"))

	buf1 := ReceiptBuff(responseHash, src, dst, big.NewInt(8), big.NewInt(8),
		invoiceID, Currency("FST1"))
	buf2 := ReceiptBuff(responseHash, src, dst, big.NewInt(8), big.NewInt(9),
		invoiceID, Currency("FST1"))
	require.NotEqual(t, buf1, buf2)
}

func TestCurrencyCanonicalRoundTrip(t *testing.T) {
	c := Currency("FST1")
	require.NoError(t, c.Validate())
	enc := c.Canonical()
	require.Equal(t, byte(len(c)), enc[0])
	require.Equal(t, []byte(c), enc[1:])
}

func TestPublicKeyLess(t *testing.T) {
	var a, b PublicKey
	a[0] = 1
	b[0] = 2
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}
