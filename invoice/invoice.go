package invoice

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/creditmesh/meshnode/ccrypto"
)

// Status is the lifecycle of an invoice this node has opened as a seller.
type Status uint8

const (
	// StatusOpen accepts new RequestSendFunds matches.
	StatusOpen Status = iota
	// StatusCommitted has released its CollectSendFunds chain; no further
	// matches are accepted.
	StatusCommitted
	// StatusCanceled was canceled by the application before being
	// committed.
	StatusCanceled
)

// responseRecord is what the seller must remember about one
// ResponseSendFunds it produced, so that a later MultiCommit's opaque
// response_hash can be mapped back to the request_id and destination lock
// that produced it.
type responseRecord struct {
	requestID      ccrypto.Hash
	randNonce      ccrypto.Hash
	destPlainLock  ccrypto.PlainLock
	destHashedLock ccrypto.Hash
}

// openInvoice is the seller's bookkeeping for one invoice_id.
type openInvoice struct {
	currency         ccrypto.Currency
	totalDestPayment *big.Int
	status           Status
	responses        map[ccrypto.Hash]*responseRecord // keyed by request_id
}

// Book is the seller's table of open/committed/canceled invoices. It
// implements funder.InvoiceMatcher.
type Book struct {
	mu       sync.Mutex
	invoices map[ccrypto.Hash]*openInvoice
}

// NewBook returns an empty invoice book.
func NewBook() *Book {
	return &Book{invoices: make(map[ccrypto.Hash]*openInvoice)}
}

// AddInvoice opens a new invoice awaiting payment, per the application's
// AddInvoice request (spec.md §6).
func (b *Book) AddInvoice(invoiceID ccrypto.Hash, currency ccrypto.Currency, totalDestPayment *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.invoices[invoiceID]; exists {
		return fmt.Errorf("invoice: %s already exists", invoiceID)
	}
	b.invoices[invoiceID] = &openInvoice{
		currency:         currency,
		totalDestPayment: new(big.Int).Set(totalDestPayment),
		status:           StatusOpen,
		responses:        make(map[ccrypto.Hash]*responseRecord),
	}
	return nil
}

// CancelInvoice withdraws an open invoice so no further requests will match
// it.
func (b *Book) CancelInvoice(invoiceID ccrypto.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("invoice: unknown invoice %s", invoiceID)
	}
	if inv.status != StatusOpen {
		return fmt.Errorf("invoice: %s is not open", invoiceID)
	}
	inv.status = StatusCanceled
	return nil
}

// ClaimForResponse implements funder.InvoiceMatcher: it reports whether
// invoiceID is open, in currency, for exactly totalDestPayment, and if so
// reserves a fresh destination lock for requestID.
func (b *Book) ClaimForResponse(currency ccrypto.Currency, invoiceID, requestID ccrypto.Hash, totalDestPayment *big.Int) (ccrypto.PlainLock, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invoices[invoiceID]
	if !ok || inv.status != StatusOpen || inv.currency != currency || inv.totalDestPayment.Cmp(totalDestPayment) != 0 {
		return ccrypto.PlainLock{}, false, nil
	}
	if _, dup := inv.responses[requestID]; dup {
		return ccrypto.PlainLock{}, false, fmt.Errorf("invoice: request %s already responded to", requestID)
	}

	lock, err := ccrypto.NewPlainLock()
	if err != nil {
		return ccrypto.PlainLock{}, false, err
	}
	inv.responses[requestID] = &responseRecord{
		requestID:      requestID,
		destPlainLock:  lock,
		destHashedLock: lock.Hash(),
	}
	return lock, true, nil
}

// RecordResponse implements funder.InvoiceMatcher: it finishes the
// bookkeeping for a response claimed via ClaimForResponse once the funder
// has decided the rand_nonce it signed the response with.
func (b *Book) RecordResponse(invoiceID, requestID, randNonce ccrypto.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("invoice: unknown invoice %s", invoiceID)
	}
	rec, ok := inv.responses[requestID]
	if !ok {
		return fmt.Errorf("invoice: no claimed response for request %s", requestID)
	}
	rec.randNonce = randNonce
	return nil
}

// ResolveResponse implements funder.InvoiceMatcher: given a commit's
// response_hash, it finds which request_id produced it and the destination
// plain lock the seller used, so the funder can release a CollectSendFunds.
func (b *Book) ResolveResponse(invoiceID, responseHash ccrypto.Hash) (ccrypto.Hash, ccrypto.PlainLock, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invoices[invoiceID]
	if !ok {
		return ccrypto.Hash{}, ccrypto.PlainLock{}, false
	}
	for _, rec := range inv.responses {
		if ccrypto.ResponseHash(rec.requestID, rec.randNonce) == responseHash {
			return rec.requestID, rec.destPlainLock, true
		}
	}
	return ccrypto.Hash{}, ccrypto.PlainLock{}, false
}

// MarkCommitted implements funder.InvoiceMatcher: it records that an
// invoice's CollectSendFunds chain has been released so it is never matched
// or committed again.
func (b *Book) MarkCommitted(invoiceID ccrypto.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("invoice: unknown invoice %s", invoiceID)
	}
	inv.status = StatusCommitted
	return nil
}

// Currency reports the currency an invoice was opened in, used by the
// application layer to validate CreatePayment requests against it.
func (b *Book) Currency(invoiceID ccrypto.Hash) (ccrypto.Currency, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inv, ok := b.invoices[invoiceID]
	if !ok {
		return "", false
	}
	return inv.currency, true
}
