package tokenchannel

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/mwire"
)

// Direction tracks which side currently holds the right to send the next
// batch of operations, per spec.md §3/§4.2.
type Direction uint8

const (
	// DirIncoming means it is our turn: we may BeginOutgoing.
	DirIncoming Direction = iota
	// DirOutgoingPending means we have sent a MoveToken and are waiting
	// on the peer's reply, duplicate-suppression, or a retransmit ask.
	DirOutgoingPending
)

// Channel is the token channel of spec.md §4.2: the set of mutual-credit
// units shared with one friend, plus the single-token-at-a-time state
// machine that governs who may send next.
type Channel struct {
	LocalPK  ccrypto.PublicKey
	RemotePK ccrypto.PublicKey

	Units map[ccrypto.Currency]*creditunit.Unit

	InconsistencyCounter uint64
	MoveTokenCounter     uint64

	Direction       Direction
	PendingOutgoing *mwire.MoveToken

	// PrevNewToken is the new_token of the latest MoveToken on the chain,
	// whichever side produced it (or the reset seed); an honest peer's
	// next M.old_token must equal it.
	PrevNewToken ccrypto.Signature

	// HasLastIncoming/LastIncomingOldToken/LastIncomingMoveTokenHashed
	// describe the last MoveToken we accepted from the peer, used to
	// recognize a peer's retransmit request per spec.md §4.3 step 2.
	HasLastIncoming             bool
	LastIncomingOldToken        ccrypto.Signature
	LastIncomingMoveTokenHashed ccrypto.Hash
}

// New creates a fresh token channel with no prior history.
func New(localPK, remotePK ccrypto.PublicKey) *Channel {
	return &Channel{
		LocalPK:  localPK,
		RemotePK: remotePK,
		Units:    make(map[ccrypto.Currency]*creditunit.Unit),
		Direction: DirIncoming,
	}
}

// NewFromReset rebuilds a token channel after an accepted reset
// (spec.md §4.3: "rebuilds the token channel seeded by the agreed
// balances and the bumped inconsistency_counter"). The chain of
// old_token/new_token values restarts from zero, since the reset itself
// — not the ordinary chain-hash discipline — is what both sides use to
// agree on the new starting point.
func NewFromReset(localPK, remotePK ccrypto.PublicKey, inconsistencyCounter uint64,
	balances map[ccrypto.Currency]*big.Int) *Channel {

	c := New(localPK, remotePK)
	c.InconsistencyCounter = inconsistencyCounter
	for currency, balance := range balances {
		c.Units[currency] = creditunit.NewFromReset(currency, balance)
	}
	return c
}

// GetOrCreateUnit returns the mutual-credit unit for currency, creating a
// fresh zero-balance one if this is the first operation naming it.
func (c *Channel) GetOrCreateUnit(currency ccrypto.Currency) *creditunit.Unit {
	u, ok := c.Units[currency]
	if !ok {
		u = creditunit.New(currency)
		c.Units[currency] = u
	}
	return u
}

// activeCurrencies returns the channel's currencies in sorted order, the
// canonical order used to build TokenInfo's balance list (spec.md §4.3
// step 3).
func (c *Channel) activeCurrencies() []ccrypto.Currency {
	out := make([]ccrypto.Currency, 0, len(c.Units))
	for cur := range c.Units {
		out = append(out, cur)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// tokenInfo builds the TokenInfo that must hash to the info_hash of the
// next MoveToken we produce, per spec.md §4.3 step 3.
func (c *Channel) tokenInfo() mwire.TokenInfo {
	balances := make([]mwire.CurrencyBalance, 0, len(c.Units))
	for _, cur := range c.activeCurrencies() {
		balances = append(balances, mwire.CurrencyBalance{
			Currency: cur,
			Balance:  c.Units[cur].Balance,
		})
	}
	return mwire.NewTokenInfo(c.LocalPK, c.RemotePK, c.InconsistencyCounter, c.MoveTokenCounter, balances)
}

// cloneUnits deep-copies every unit, the substrate for the clone-try-
// commit, all-or-nothing application of an operation batch (spec.md §9).
func (c *Channel) cloneUnits() map[ccrypto.Currency]*creditunit.Unit {
	out := make(map[ccrypto.Currency]*creditunit.Unit, len(c.Units))
	for cur, u := range c.Units {
		out[cur] = u.Clone()
	}
	return out
}

// OutgoingHandle buffers operations for the MoveToken we are about to
// send, per spec.md §4.2 "Begin outgoing"/"Queue operation". It mutates a
// clone of the channel's units so that a failed Queue leaves the channel
// untouched.
type OutgoingHandle struct {
	channel     *Channel
	units       map[ccrypto.Currency]*creditunit.Unit
	ops         []mwire.Op
	localRelays []mwire.RelayAddress
	seenRequest map[ccrypto.Hash]bool
}

// BeginOutgoing opens an OutgoingHandle. Fails if the channel is already
// mid-send.
func (c *Channel) BeginOutgoing() (*OutgoingHandle, error) {
	if c.Direction != DirIncoming {
		return nil, fmt.Errorf("tokenchannel: already outgoing")
	}
	return &OutgoingHandle{
		channel:     c,
		units:       c.cloneUnits(),
		seenRequest: make(map[ccrypto.Hash]bool),
	}, nil
}

// requestIDOf extracts the request id an op references, for the same-id-
// twice-in-one-batch rejection rule (spec.md §4.1 "Tie-break and edge
// policies").
func requestIDOf(op mwire.Op) (ccrypto.Hash, bool) {
	switch o := op.(type) {
	case *mwire.RequestSendFundsOp:
		return o.RequestID, true
	case *mwire.ResponseSendFundsOp:
		return o.RequestID, true
	case *mwire.CancelSendFundsOp:
		return o.RequestID, true
	case *mwire.CollectSendFundsOp:
		return o.RequestID, true
	default:
		return ccrypto.Hash{}, false
	}
}

// QueueOperation validates and applies op as an outgoing operation
// against the corresponding unit's clone. On failure the handle's state
// is left exactly as it was before the call (spec.md §4.2).
func (h *OutgoingHandle) QueueOperation(op mwire.Op) error {
	if id, ok := requestIDOf(op); ok && h.seenRequest[id] {
		return fmt.Errorf("tokenchannel: request id %s already referenced in this batch", id)
	}

	unit, ok := h.units[op.Currency()]
	if !ok {
		unit = creditunit.New(op.Currency())
		h.units[op.Currency()] = unit
	}
	working := unit.Clone()

	credOp, err := op.ToCredit()
	if err != nil {
		return err
	}
	if err := credOp.Apply(working, creditunit.Outgoing); err != nil {
		return err
	}

	h.units[op.Currency()] = working
	h.ops = append(h.ops, op)
	if id, ok := requestIDOf(op); ok {
		h.seenRequest[id] = true
	}
	return nil
}

// SetLocalRelays attaches a new advertised relay set to the MoveToken
// that FinalizeOutgoing will build.
func (h *OutgoingHandle) SetLocalRelays(relays []mwire.RelayAddress) {
	h.localRelays = relays
}

// Empty reports whether no operations have been queued (and no relay
// update is pending), i.e. there is nothing worth sending.
func (h *OutgoingHandle) Empty() bool {
	return len(h.ops) == 0 && h.localRelays == nil
}

// FinalizeOutgoing seals the buffered operations into an unsigned
// MoveToken, hands it to signer for new_token production, commits the
// handle's unit clones, and flips the channel into Outgoing(pending)
// (spec.md §4.2 "Finalize outgoing").
func (h *OutgoingHandle) FinalizeOutgoing(signer ccrypto.Signer) (*mwire.MoveToken, error) {
	c := h.channel

	var randNonce ccrypto.Hash
	if _, err := rand.Read(randNonce[:]); err != nil {
		return nil, err
	}

	mt := &mwire.MoveToken{
		Operations:     h.ops,
		OptLocalRelays: h.localRelays,
		OldToken:       c.PrevNewToken,
		RandNonce:      randNonce,
	}

	info := c.tokenInfo()
	infoHash, err := info.Hash()
	if err != nil {
		return nil, err
	}
	mt.InfoHash = infoHash

	buf, err := mt.SignatureBuff()
	if err != nil {
		return nil, err
	}
	newToken, err := signer.Sign(c.LocalPK, buf)
	if err != nil {
		return nil, err
	}
	mt.NewToken = newToken

	c.Units = h.units
	c.PrevNewToken = newToken
	c.MoveTokenCounter++
	c.Direction = DirOutgoingPending
	c.PendingOutgoing = mt

	return mt, nil
}
