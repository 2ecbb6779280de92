package friend

import (
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/mwire"
	"github.com/creditmesh/meshnode/tokenchannel"
)

// Status is the local enable/disable switch on a friend, independent of
// the token channel's own consistency (spec.md §3).
type Status uint8

const (
	// StatusEnabled means we exchange MoveTokens and route through this
	// friend.
	StatusEnabled Status = iota
	// StatusDisabled means we have turned this friend off; its queues get
	// drained and canceled, and no new operations are accepted.
	StatusDisabled
)

// ChannelStatusKind distinguishes a token channel in good standing from
// one that has diverged and is waiting on a reset (spec.md §4.3).
type ChannelStatusKind uint8

const (
	// ChannelConsistent means Channel is live and processing MoveTokens
	// normally.
	ChannelConsistent ChannelStatusKind = iota
	// ChannelInconsistent means the channel detected a divergence and is
	// waiting for both sides to agree on reset terms.
	ChannelInconsistent
)

// ChannelStatus is the friend's view of its token channel: either
// Consistent, wrapping the live channel, or Inconsistent, carrying the
// reset terms each side has offered so far.
type ChannelStatus struct {
	Kind    ChannelStatusKind
	Channel *tokenchannel.Channel

	LocalResetTerms  *mwire.ResetTerms
	RemoteResetTerms *mwire.ResetTerms

	HasLastIncomingMoveTokenHashed bool
	LastIncomingMoveTokenHashed    ccrypto.Hash
}

// Rate is the forwarding fee schedule a friend charges for relaying
// payments, per spec.md §3: fee(x) = floor(x*mul / 2^32) + add.
type Rate struct {
	Mul uint32
	Add uint32
}

// Fee computes the forwarding fee this rate charges on payment amount x.
func (r Rate) Fee(x *big.Int) *big.Int {
	prod := new(big.Int).Mul(x, big.NewInt(int64(r.Mul)))
	fee := new(big.Int).Rsh(prod, 32)
	return fee.Add(fee, big.NewInt(int64(r.Add)))
}

// Friend is the local node's bilateral relationship with one peer:
// its own enable/disable switch, the token channel (or its reset
// state), the fee it charges to relay through it, the relay addresses
// we have advertised to it, and the per-currency queues/wanted-state
// that feed the next outgoing MoveToken (spec.md §3).
type Friend struct {
	LocalPK  ccrypto.PublicKey
	RemotePK ccrypto.PublicKey
	Name     string

	Status        Status
	ChannelStatus ChannelStatus
	Rate          Rate
	Relays        RelayState

	// RemoteRelays is the last relay set the peer advertised to us.
	RemoteRelays []mwire.RelayAddress

	Queues map[ccrypto.Currency]*CurrencyQueues
}

// New creates a friend in its initial state: enabled, with a fresh
// zero-balance token channel and no relay history.
func New(localPK, remotePK ccrypto.PublicKey, name string) *Friend {
	return &Friend{
		LocalPK:  localPK,
		RemotePK: remotePK,
		Name:     name,
		Status:   StatusEnabled,
		ChannelStatus: ChannelStatus{
			Kind:    ChannelConsistent,
			Channel: tokenchannel.New(localPK, remotePK),
		},
		Relays: NewRelayState(),
		Queues: make(map[ccrypto.Currency]*CurrencyQueues),
	}
}

// QueuesFor returns (creating if necessary) the per-currency queue/wanted
// state for currency.
func (f *Friend) QueuesFor(currency ccrypto.Currency) *CurrencyQueues {
	q, ok := f.Queues[currency]
	if !ok {
		q = newCurrencyQueues()
		f.Queues[currency] = q
	}
	return q
}

// Currencies lists every currency this friend has queue/wanted state for,
// sorted, so callers get a deterministic iteration order.
func (f *Friend) Currencies() []ccrypto.Currency {
	out := make([]ccrypto.Currency, 0, len(f.Queues))
	for cur := range f.Queues {
		out = append(out, cur)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Enable flips the friend back on.
func (f *Friend) Enable() {
	f.Status = StatusEnabled
}

// Disable turns the friend off and returns every queued user-originated
// and forwarded request across all currencies, so the caller can cancel
// them (spec.md §4.4). Backwards ops are left untouched and still sent.
func (f *Friend) Disable() (userRequests, forwarded []mwire.Op) {
	f.Status = StatusDisabled
	for _, cur := range f.Currencies() {
		u, fw := f.Queues[cur].DropCancellable()
		userRequests = append(userRequests, u...)
		forwarded = append(forwarded, fw...)
	}
	return userRequests, forwarded
}

// WalkPendingLocalTransactions invokes fn for every currency's
// LocalPendingTransactions -- requests we sent and are still awaiting a
// response or collect/cancel for -- so a caller can fail them upstream
// when this friend is unfriended or its channel is reset.
func (f *Friend) WalkPendingLocalTransactions(fn func(currency ccrypto.Currency, pr *creditunit.PendingRequest)) {
	if f.ChannelStatus.Kind != ChannelConsistent {
		return
	}
	for cur, unit := range f.ChannelStatus.Channel.Units {
		for _, pr := range unit.LocalPendingTransactions {
			fn(cur, pr)
		}
	}
}

// MarkInconsistent transitions the friend's channel status out of
// Consistent, recording the reset terms we offer and, if the peer already
// sent its own, those too.
func (f *Friend) MarkInconsistent(local *mwire.ResetTerms) {
	f.ChannelStatus = ChannelStatus{
		Kind:                           ChannelInconsistent,
		LocalResetTerms:                local,
		RemoteResetTerms:               f.ChannelStatus.RemoteResetTerms,
		HasLastIncomingMoveTokenHashed: f.ChannelStatus.HasLastIncomingMoveTokenHashed,
		LastIncomingMoveTokenHashed:    f.ChannelStatus.LastIncomingMoveTokenHashed,
	}
}

// ResetChannel replaces an Inconsistent channel status with a freshly
// rebuilt, Consistent one once both sides have agreed on terms.
func (f *Friend) ResetChannel(ch *tokenchannel.Channel) {
	f.ChannelStatus = ChannelStatus{Kind: ChannelConsistent, Channel: ch}
}
