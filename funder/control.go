package funder

import (
	"fmt"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
)

// SetFriendName renames an existing friend.
func (fd *Funder) SetFriendName(remotePK ccrypto.PublicKey, name string) error {
	f, err := fd.mustFriend(remotePK)
	if err != nil {
		return err
	}
	f.Name = name
	return nil
}

// SetFriendRate changes the fee this node charges when relaying through
// remotePK.
func (fd *Funder) SetFriendRate(remotePK ccrypto.PublicKey, rate friend.Rate) error {
	f, err := fd.mustFriend(remotePK)
	if err != nil {
		return err
	}
	f.Rate = rate
	return nil
}

// SetFriendRemoteMaxDebt sets the debt ceiling this node grants remotePK
// for currency (how much remotePK may owe us).
func (fd *Funder) SetFriendRemoteMaxDebt(remotePK ccrypto.PublicKey, currency ccrypto.Currency, maxDebt *big.Int) error {
	if err := ccrypto.CheckMaxDebt(maxDebt); err != nil {
		return err
	}
	f, err := fd.mustFriend(remotePK)
	if err != nil {
		return err
	}
	if f.ChannelStatus.Kind != friend.ChannelConsistent {
		return nil
	}
	f.QueuesFor(currency).WantedRemoteMaxDebt = new(big.Int).Set(maxDebt)
	return nil
}

// OpenFriend grants remotePK the right to send us requests in currency.
func (fd *Funder) OpenFriend(remotePK ccrypto.PublicKey, currency ccrypto.Currency) error {
	return fd.setRequestsStatusLocked(remotePK, currency, creditunit.StatusOpen)
}

// CloseFriend revokes remotePK's right to send us new requests in
// currency; requests already in flight still settle.
func (fd *Funder) CloseFriend(remotePK ccrypto.PublicKey, currency ccrypto.Currency) error {
	return fd.setRequestsStatusLocked(remotePK, currency, creditunit.StatusClosed)
}

func (fd *Funder) setRequestsStatusLocked(remotePK ccrypto.PublicKey, currency ccrypto.Currency, status creditunit.RequestsStatus) error {
	f, err := fd.mustFriend(remotePK)
	if err != nil {
		return err
	}
	if f.ChannelStatus.Kind != friend.ChannelConsistent {
		return nil
	}
	f.QueuesFor(currency).WantedLocalRequestsStatus = status
	return nil
}

// PaymentOutcome reports whether an open Payment has reached a terminal
// state: succeeded once every route's OpenTransaction committed, failed
// once every route has either failed or none remain pending with at least
// one failure, and not-terminal (ok=false's complement with terminal=false)
// while any route is still TransactionPending.
func (fd *Funder) PaymentOutcome(invoiceID ccrypto.Hash) (succeeded, terminal, found bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	p, ok := fd.Payments[invoiceID]
	if !ok {
		return false, false, false
	}
	anyFailed := false
	for _, tx := range p.Transactions {
		switch tx.State {
		case TransactionPending:
			return false, false, true
		case TransactionFailed:
			anyFailed = true
		}
	}
	return !anyFailed, true, true
}

// AckPayment deletes a payment's bookkeeping once the buyer has
// acknowledged its terminal ResponseClosePayment.
func (fd *Funder) AckPayment(invoiceID ccrypto.Hash) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if _, ok := fd.Payments[invoiceID]; !ok {
		return fmt.Errorf("funder: unknown payment %s", invoiceID)
	}
	delete(fd.Payments, invoiceID)
	return nil
}
