package invoice

import (
	"fmt"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
)

// Commit is the seller's per-transaction proof the buyer collects before
// it can assemble a MultiCommit, per spec.md §4.4's multi-route payments.
// Commit carries the destination lock only as its hash, since the buyer
// receives it before the collect walk reveals the plain preimage.
type Commit struct {
	ResponseHash   ccrypto.Hash
	DestPayment    *big.Int
	SrcPlainLock   ccrypto.PlainLock
	DestHashedLock ccrypto.Hash
	Signature      ccrypto.Signature
}

// MultiCommit aggregates every transaction's Commit for one invoice so the
// buyer can hand the seller a single CommitInvoice request, per spec.md
// §4.4: "the buyer aggregates commits into a MultiCommit... such that
// Σ commits[i].dest_payment == total_dest_payment".
type MultiCommit struct {
	InvoiceID        ccrypto.Hash
	Currency         ccrypto.Currency
	TotalDestPayment *big.Int
	Commits          []Commit
}

// Validate checks the sum invariant a MultiCommit must satisfy before it is
// handed to the seller.
func (mc *MultiCommit) Validate() error {
	sum := big.NewInt(0)
	for _, c := range mc.Commits {
		sum.Add(sum, c.DestPayment)
	}
	if sum.Cmp(mc.TotalDestPayment) != 0 {
		return fmt.Errorf("invoice: commits sum to %s, want total_dest_payment %s", sum, mc.TotalDestPayment)
	}
	return nil
}

// Receipt is the buyer's final proof of payment for an invoice, assembled
// once a transaction's CollectSendFunds reveals dest_plain_lock, per
// spec.md §4.6.
type Receipt struct {
	ResponseHash     ccrypto.Hash
	InvoiceID        ccrypto.Hash
	SrcPlainLock     ccrypto.PlainLock
	DestPlainLock    ccrypto.PlainLock
	DestPayment      *big.Int
	TotalDestPayment *big.Int
	Signature        ccrypto.Signature
}

// AssembleReceipt builds the buyer-side Receipt for one transaction once its
// Commit has matured into a revealed dest_plain_lock (the CollectSendFunds
// a relay or the seller hands back upstream carries exactly this pair).
func AssembleReceipt(c Commit, invoiceID ccrypto.Hash, destPlainLock ccrypto.PlainLock, totalDestPayment *big.Int) (*Receipt, error) {
	if destPlainLock.Hash() != c.DestHashedLock {
		return nil, fmt.Errorf("invoice: dest_plain_lock does not match commit's dest_hashed_lock")
	}
	return &Receipt{
		ResponseHash:     c.ResponseHash,
		InvoiceID:        invoiceID,
		SrcPlainLock:     c.SrcPlainLock,
		DestPlainLock:    destPlainLock,
		DestPayment:      c.DestPayment,
		TotalDestPayment: totalDestPayment,
		Signature:        c.Signature,
	}, nil
}

// VerifyReceipt checks a Receipt's signature against the seller's public
// key, per spec.md §4.6's receipt buffer.
func VerifyReceipt(r *Receipt, sellerPK ccrypto.PublicKey, currency ccrypto.Currency) bool {
	buf := ccrypto.ReceiptBuff(r.ResponseHash, r.SrcPlainLock, r.DestPlainLock, r.DestPayment, r.TotalDestPayment, r.InvoiceID, currency)
	return ccrypto.Verify(sellerPK, buf, r.Signature)
}

// VerifyCommit checks one Commit's signature against the seller's public
// key, as a buyer does before folding it into a MultiCommit, or the seller
// itself does when validating a MultiCommit it is asked to commit (spec.md
// §4.4).
func VerifyCommit(c Commit, sellerPK ccrypto.PublicKey, invoiceID ccrypto.Hash, totalDestPayment *big.Int, currency ccrypto.Currency) bool {
	buf := ccrypto.CommitSignatureBuff(c.ResponseHash, c.SrcPlainLock, c.DestHashedLock, c.DestPayment, totalDestPayment, invoiceID, currency)
	return ccrypto.Verify(sellerPK, buf, c.Signature)
}
