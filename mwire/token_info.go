package mwire

import (
	"bytes"

	"github.com/creditmesh/meshnode/ccrypto"
)

// TokenInfo is the summary of channel state hashed into every MoveToken's
// info_hash, per spec.md §3/§4.3:
//
//	TokenInfo = {local_pk, remote_pk, inconsistency_counter,
//	             move_token_counter_expected, balances per currency}
type TokenInfo struct {
	LocalPK                  ccrypto.PublicKey
	RemotePK                 ccrypto.PublicKey
	InconsistencyCounter     uint64
	MoveTokenCounterExpected uint64
	Balances                 []CurrencyBalance
}

// NewTokenInfo builds a TokenInfo, computing MoveTokenCounterExpected as
// moveTokenCounter + 1 per spec.md §4.3 step 3.
func NewTokenInfo(localPK, remotePK ccrypto.PublicKey, inconsistencyCounter uint64,
	moveTokenCounter uint64, balances []CurrencyBalance) TokenInfo {

	return TokenInfo{
		LocalPK:                  localPK,
		RemotePK:                 remotePK,
		InconsistencyCounter:     inconsistencyCounter,
		MoveTokenCounterExpected: moveTokenCounter + 1,
		Balances:                 balances,
	}
}

// Hash computes hash_token_info(TokenInfo), used to check M.info_hash in
// spec.md §4.3 step 3.
func (ti TokenInfo) Hash() (ccrypto.Hash, error) {
	var buf bytes.Buffer
	if err := writePubKey(&buf, ti.LocalPK); err != nil {
		return ccrypto.Hash{}, err
	}
	if err := writePubKey(&buf, ti.RemotePK); err != nil {
		return ccrypto.Hash{}, err
	}
	if err := writeUint64(&buf, ti.InconsistencyCounter); err != nil {
		return ccrypto.Hash{}, err
	}
	if err := writeUint64(&buf, ti.MoveTokenCounterExpected); err != nil {
		return ccrypto.Hash{}, err
	}
	if err := EncodeBalances(&buf, ti.Balances); err != nil {
		return ccrypto.Hash{}, err
	}
	return ccrypto.Sum512_256(buf.Bytes()), nil
}
