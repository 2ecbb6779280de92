package mwire

import (
	"bytes"
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

func TestOpEncodeDecodeRoundTrip(t *testing.T) {
	ops := []Op{
		&EnableRequestsOp{CurrencyField: "FST1"},
		&DisableRequestsOp{CurrencyField: "FST1"},
		&SetRemoteMaxDebtOp{CurrencyField: "FST1", X: big.NewInt(12345)},
		&RequestSendFundsOp{
			CurrencyField:    "FST1",
			RequestID:        ccrypto.Sum512_256([]byte("r1")),
			Route:            []ccrypto.PublicKey{mkPK(1), mkPK(2)},
			SrcHashedLock:    ccrypto.Sum512_256([]byte("src")),
			DestPayment:      big.NewInt(8),
			TotalDestPayment: big.NewInt(8),
			InvoiceID:        ccrypto.Sum512_256([]byte("inv")),
			LeftFees:         big.NewInt(1),
		},
		&ResponseSendFundsOp{
			CurrencyField:  "FST1",
			RequestID:      ccrypto.Sum512_256([]byte("r1")),
			DestHashedLock: ccrypto.Sum512_256([]byte("dst")),
			RandNonce:      ccrypto.Sum512_256([]byte("nonce")),
		},
		&CancelSendFundsOp{CurrencyField: "FST1", RequestID: ccrypto.Sum512_256([]byte("r1"))},
		&CollectSendFundsOp{CurrencyField: "FST1", RequestID: ccrypto.Sum512_256([]byte("r1"))},
	}

	for _, op := range ops {
		var buf bytes.Buffer
		require.NoError(t, EncodeOp(&buf, op))

		decoded, err := DecodeOp(&buf)
		require.NoError(t, err)
		require.Equal(t, op.Tag(), decoded.Tag())
	}
}

func TestMoveTokenRoundTrip(t *testing.T) {
	mt := &MoveToken{
		Operations: []Op{
			&EnableRequestsOp{CurrencyField: "FST1"},
			&SetRemoteMaxDebtOp{CurrencyField: "FST1", X: big.NewInt(100)},
		},
		OldToken:  ccrypto.Signature{1, 2, 3},
		InfoHash:  ccrypto.Sum512_256([]byte("info")),
		RandNonce: ccrypto.Sum512_256([]byte("nonce")),
		NewToken:  ccrypto.Signature{4, 5, 6},
	}

	var buf bytes.Buffer
	require.NoError(t, mt.Encode(&buf))

	var decoded MoveToken
	require.NoError(t, decoded.Decode(&buf))
	require.Len(t, decoded.Operations, 2)
	require.Equal(t, mt.OldToken, decoded.OldToken)
	require.Equal(t, mt.NewToken, decoded.NewToken)
}

func TestPrefixHashChangesWithOps(t *testing.T) {
	mt1 := &MoveToken{Operations: []Op{&EnableRequestsOp{CurrencyField: "FST1"}}}
	mt2 := &MoveToken{Operations: []Op{&DisableRequestsOp{CurrencyField: "FST1"}}}

	h1, err := mt1.PrefixHash()
	require.NoError(t, err)
	h2, err := mt2.PrefixHash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestFriendMessageFrameRoundTrip(t *testing.T) {
	msg := &MoveTokenRequest{
		MoveToken: &MoveToken{
			Operations: []Op{&EnableRequestsOp{CurrencyField: "FST1"}},
			OldToken:   ccrypto.Signature{9},
			InfoHash:   ccrypto.Sum512_256([]byte("info")),
			RandNonce:  ccrypto.Sum512_256([]byte("nonce")),
			NewToken:   ccrypto.Signature{8},
		},
		TokenWanted: true,
	}

	var buf bytes.Buffer
	_, err := WriteMessage(&buf, msg)
	require.NoError(t, err)

	decoded, err := ReadMessage(&buf)
	require.NoError(t, err)

	decodedReq, ok := decoded.(*MoveTokenRequest)
	require.True(t, ok)
	require.True(t, decodedReq.TokenWanted)
	require.Len(t, decodedReq.MoveToken.Operations, 1)
}

func TestInconsistencyErrorRoundTrip(t *testing.T) {
	msg := &InconsistencyErrorMsg{
		ResetTerms: ResetTerms{
			ResetToken:           ccrypto.Sum512_256([]byte("reset")),
			InconsistencyCounter: 3,
			Balances: []CurrencyBalance{
				{Currency: "FST2", Balance: big.NewInt(-1)},
				{Currency: "FST1", Balance: big.NewInt(5)},
			},
		},
	}

	var buf bytes.Buffer
	_, err := WriteMessage(&buf, msg)
	require.NoError(t, err)

	decoded, err := ReadMessage(&buf)
	require.NoError(t, err)

	decodedErr, ok := decoded.(*InconsistencyErrorMsg)
	require.True(t, ok)
	require.Equal(t, uint64(3), decodedErr.ResetTerms.InconsistencyCounter)
	require.Len(t, decodedErr.ResetTerms.Balances, 2)
	// EncodeBalances sorts by currency name.
	require.Equal(t, ccrypto.Currency("FST1"), decodedErr.ResetTerms.Balances[0].Currency)
}

func TestTokenInfoHashDeterministic(t *testing.T) {
	ti := NewTokenInfo(mkPK(1), mkPK(2), 0, 0, nil)
	h1, err := ti.Hash()
	require.NoError(t, err)
	h2, err := ti.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	ti2 := NewTokenInfo(mkPK(1), mkPK(2), 1, 0, nil)
	h3, err := ti2.Hash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}
