package ccrypto

import (
	"encoding/binary"
	"math/big"
)

// ResponseHash computes response_hash = sha512/256(request_id ‖ rand_nonce),
// the quantity a Commit and Receipt both bind to, per spec.md §4.6.
func ResponseHash(requestID Hash, randNonce Hash) Hash {
	return Sum512_256(requestID[:], randNonce[:])
}

// ResponseSignatureBuff builds the canonical buffer a seller/relay signs
// when producing a ResponseSendFunds, per spec.md §4.6:
//
//	sha512/256("FUND_RESPONSE") ‖ sha512/256(request_id ‖ rand_nonce) ‖
//	src_hashed_lock ‖ dest_hashed_lock ‖ be_u128(dest_payment) ‖
//	be_u128(total_dest_payment) ‖ invoice_id ‖ canonical(currency)
func ResponseSignatureBuff(
	requestID Hash,
	randNonce Hash,
	srcHashedLock HashedLock,
	destHashedLock HashedLock,
	destPayment *big.Int,
	totalDestPayment *big.Int,
	invoiceID Hash,
	currency Currency,
) []byte {

	tag := Sum512_256([]byte("FUND_RESPONSE"))
	idNonce := ResponseHash(requestID, randNonce)
	destPaymentBuf := BEBytes16(destPayment)
	totalBuf := BEBytes16(totalDestPayment)

	var buf []byte
	buf = append(buf, tag[:]...)
	buf = append(buf, idNonce[:]...)
	buf = append(buf, srcHashedLock[:]...)
	buf = append(buf, destHashedLock[:]...)
	buf = append(buf, destPaymentBuf[:]...)
	buf = append(buf, totalBuf[:]...)
	buf = append(buf, invoiceID[:]...)
	buf = append(buf, currency.Canonical()...)
	return buf
}

// commitBuff builds the buffer shared by Commit and Receipt signatures: they
// differ only in whether the destination lock is already known as a plain
// value (Receipt, after Collect reveals it) or only as its hash (Commit,
// before the collect walk runs).
func commitBuff(responseHash Hash, srcHashed, destHashed HashedLock, destPayment, totalDestPayment *big.Int, invoiceID Hash, currency Currency) []byte {
	tag := Sum512_256([]byte("FUND_RESPONSE"))
	destPaymentBuf := BEBytes16(destPayment)
	totalBuf := BEBytes16(totalDestPayment)

	var buf []byte
	buf = append(buf, tag[:]...)
	buf = append(buf, responseHash[:]...)
	buf = append(buf, srcHashed[:]...)
	buf = append(buf, destHashed[:]...)
	buf = append(buf, destPaymentBuf[:]...)
	buf = append(buf, totalBuf[:]...)
	buf = append(buf, invoiceID[:]...)
	buf = append(buf, currency.Canonical()...)
	return buf
}

// ReceiptBuff builds the canonical buffer the seller signs to produce a
// Receipt, per spec.md §4.6:
//
//	sha512/256("FUND_RESPONSE") ‖ response_hash ‖ hash_lock(src_plain_lock) ‖
//	hash_lock(dest_plain_lock) ‖ be_u128(dest_payment) ‖
//	be_u128(total_dest_payment) ‖ invoice_id ‖ canonical(currency)
func ReceiptBuff(
	responseHash Hash,
	srcPlainLock PlainLock,
	destPlainLock PlainLock,
	destPayment *big.Int,
	totalDestPayment *big.Int,
	invoiceID Hash,
	currency Currency,
) []byte {
	return commitBuff(responseHash, srcPlainLock.Hash(), destPlainLock.Hash(), destPayment, totalDestPayment, invoiceID, currency)
}

// CommitSignatureBuff builds the buffer a seller signs to produce a Commit
// handed to the buyer before the collect walk reveals dest_plain_lock: it
// is identical to ReceiptBuff except the destination lock is carried as its
// hash rather than its (not yet revealed) preimage, so the same signature
// later verifies as the Receipt once the preimage is known.
func CommitSignatureBuff(
	responseHash Hash,
	srcPlainLock PlainLock,
	destHashedLock HashedLock,
	destPayment *big.Int,
	totalDestPayment *big.Int,
	invoiceID Hash,
	currency Currency,
) []byte {
	return commitBuff(responseHash, srcPlainLock.Hash(), destHashedLock, destPayment, totalDestPayment, invoiceID, currency)
}

// MoveTokenPrefixHash computes prefix_hash(M), per spec.md §4.3:
//
//	sha512/256(old_token ‖ len(ops) ‖ canonical(op₁…opₙ) ‖ canonical(opt_local_relays))
//
// canonicalOps and canonicalRelays must already be the concatenated
// canonical encodings of the operations and (possibly empty) relay list;
// they are produced by the mwire package, which owns the wire encoding of
// FriendTcOp and relay addresses.
func MoveTokenPrefixHash(oldToken Signature, numOps uint32, canonicalOps []byte, canonicalRelays []byte) Hash {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], numOps)

	return Sum512_256(oldToken[:], lenBuf[:], canonicalOps, canonicalRelays)
}

// MoveTokenSignatureBuff builds the buffer signed to produce new_token, per
// spec.md §4.3 step 1:
//
//	sha512/256("NEXT") ‖ prefix_hash(M) ‖ info_hash ‖ rand_nonce
func MoveTokenSignatureBuff(prefixHash Hash, infoHash Hash, randNonce Hash) []byte {
	tag := Sum512_256([]byte("NEXT"))

	var buf []byte
	buf = append(buf, tag[:]...)
	buf = append(buf, prefixHash[:]...)
	buf = append(buf, infoHash[:]...)
	buf = append(buf, randNonce[:]...)
	return buf
}

// ResetToken computes the reset_token a peer offers when declaring
// inconsistency, per spec.md §4.3:
//
//	reset_token = sha512/256("RESET" ‖ new_token ‖ balances)
func ResetToken(lastNewToken Signature, balances []byte) Hash {
	return Sum512_256([]byte("RESET"), lastNewToken[:], balances)
}
