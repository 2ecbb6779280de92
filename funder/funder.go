package funder

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/mwire"
	"github.com/creditmesh/meshnode/tokenchannel"
)

// MaxOperationsInBatch bounds how many operations a single outgoing
// MoveToken may carry, per spec.md §4.4's "Queue drain and send".
const MaxOperationsInBatch = 64

// MaxPendingUserRequests bounds each (friend, currency)'s
// pending_user_requests queue, per spec.md §4.5; an attempt to enqueue past
// this returns ErrTooManyPendingUserRequests so the caller can surface
// TransactionResult::Failure immediately.
const MaxPendingUserRequests = 128

// ErrTooManyPendingUserRequests is returned by CreateTransaction when a
// friend's queue for a currency is already at MaxPendingUserRequests.
var ErrTooManyPendingUserRequests = fmt.Errorf("funder: pending_user_requests queue is full")

// ForwardEntry records, for a request_id we are relaying, which upstream
// friend and currency it arrived on -- so a later Response/Cancel/Collect
// knows where to send the backwards op, and an unfriend/disable/reset walk
// knows who to cancel toward (spec.md §4.4's forwarding index).
type ForwardEntry struct {
	OriginPK ccrypto.PublicKey
	Currency ccrypto.Currency
}

// InvoiceMatcher is the seam to the invoice package: when we are the final
// hop of a RequestSendFunds, the funder asks whether an open invoice
// matches, and if so claims a fresh destination lock bound to this
// request (spec.md §4.4 step 2).
type InvoiceMatcher interface {
	ClaimForResponse(currency ccrypto.Currency, invoiceID, requestID ccrypto.Hash, totalDestPayment *big.Int) (ccrypto.PlainLock, bool, error)

	// RecordResponse finishes the bookkeeping for a response claimed via
	// ClaimForResponse once the rand_nonce it was signed with is known.
	RecordResponse(invoiceID, requestID, randNonce ccrypto.Hash) error

	// ResolveResponse maps a Commit's opaque response_hash back to the
	// request_id and destination plain lock that produced it, so
	// CommitInvoice knows which friend to release a CollectSendFunds on.
	ResolveResponse(invoiceID, responseHash ccrypto.Hash) (ccrypto.Hash, ccrypto.PlainLock, bool)

	// MarkCommitted records that an invoice's CollectSendFunds chain has
	// been released, so it cannot be matched or committed again.
	MarkCommitted(invoiceID ccrypto.Hash) error
}

// Funder is the engine's state: every friend relationship, the forwarding
// index for requests currently in flight, open buyer-side payments, and the
// collaborators it defers to for invoices and signing.
type Funder struct {
	mu sync.Mutex

	LocalPK ccrypto.PublicKey
	Signer  ccrypto.Signer
	Clock   func() []mwire.RelayAddress // desired local relay set, read fresh each send

	Friends    map[ccrypto.PublicKey]*friend.Friend
	Forwarding map[ccrypto.Hash]ForwardEntry
	Payments   map[ccrypto.Hash]*Payment
	SeqFriends *SeqFriends

	Invoices InvoiceMatcher
	Metrics  *Metrics
}

// New creates an empty funder for localPK, signing outgoing MoveTokens with
// signer.
func New(localPK ccrypto.PublicKey, signer ccrypto.Signer, invoices InvoiceMatcher) *Funder {
	return &Funder{
		LocalPK:    localPK,
		Signer:     signer,
		Friends:    make(map[ccrypto.PublicKey]*friend.Friend),
		Forwarding: make(map[ccrypto.Hash]ForwardEntry),
		Payments:   make(map[ccrypto.Hash]*Payment),
		SeqFriends: NewSeqFriends(),
		Invoices:   invoices,
		Metrics:    NewMetrics(),
	}
}

// AddFriend registers a new friend relationship; it is a no-op if already
// present (spec.md's AppRequest.AddFriend is idempotent at this layer, the
// application enforces "already exists" semantics above it).
func (fd *Funder) AddFriend(remotePK ccrypto.PublicKey, name string) *friend.Friend {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if f, ok := fd.Friends[remotePK]; ok {
		return f
	}
	f := friend.New(fd.LocalPK, remotePK, name)
	fd.Friends[remotePK] = f
	fd.SeqFriends.Update(remotePK)
	fd.Metrics.FriendsTotal.Inc()
	return f
}

// RemoveFriend walks and cancels the friend's in-flight transactions, then
// deletes it.
func (fd *Funder) RemoveFriend(remotePK ccrypto.PublicKey) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	f, ok := fd.Friends[remotePK]
	if !ok {
		return fmt.Errorf("funder: unknown friend %s", remotePK)
	}
	fd.cancelFriendLocked(f)
	delete(fd.Friends, remotePK)
	fd.SeqFriends.Remove(remotePK)
	fd.Metrics.FriendsTotal.Dec()
	return nil
}

// EnableFriend re-enables a previously disabled friend.
func (fd *Funder) EnableFriend(remotePK ccrypto.PublicKey) error {
	f, err := fd.mustFriend(remotePK)
	if err != nil {
		return err
	}
	f.Enable()
	return nil
}

// DisableFriend turns a friend off, canceling its user/forwarded queues
// (backwards ops still go out), per spec.md §4.4.
func (fd *Funder) DisableFriend(remotePK ccrypto.PublicKey) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	f, ok := fd.Friends[remotePK]
	if !ok {
		return fmt.Errorf("funder: unknown friend %s", remotePK)
	}
	userReqs, forwarded := f.Disable()
	fd.cancelDroppedLocked(f, userReqs, forwarded)
	return nil
}

func (fd *Funder) mustFriend(pk ccrypto.PublicKey) (*friend.Friend, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	f, ok := fd.Friends[pk]
	if !ok {
		return nil, fmt.Errorf("funder: unknown friend %s", pk)
	}
	return f, nil
}

// checkCanQueue validates op against ch's currency unit without mutating
// it, by applying it to a clone in the Outgoing direction -- the same
// clone-try-commit discipline tokenchannel.OutgoingHandle uses, exposed
// here so the funder can pre-flight a forwarded request before recording it
// in the forwarding index and queuing it.
func checkCanQueue(ch *tokenchannel.Channel, currency ccrypto.Currency, op mwire.Op) error {
	unit := ch.GetOrCreateUnit(currency)
	clone := unit.Clone()
	credOp, err := op.ToCredit()
	if err != nil {
		return err
	}
	return credOp.Apply(clone, creditunit.Outgoing)
}
