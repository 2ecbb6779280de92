package friend

import (
	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/mwire"
)

// RelayStateKind is the three-way sent_local_relays state of spec.md §3.
type RelayStateKind uint8

const (
	// RelayNeverSent means we have never advertised a relay set to this
	// friend.
	RelayNeverSent RelayStateKind = iota
	// RelayLastSent means Current is the last relay set the peer has
	// acknowledged (by chaining a MoveToken on top of the one that
	// carried it).
	RelayLastSent
	// RelayTransition means we advertised Current on top of Previous and
	// are still waiting for the peer to chain past that point; Previous
	// must be treated as still possibly live until the transition
	// completes.
	RelayTransition
)

// RelayState tracks what relay addresses we have told a friend about, and
// whether that advertisement has been acknowledged, per the resolved open
// question in DESIGN.md: a Transition becomes LastSent once a MoveToken
// from the peer carries old_token equal to the new_token we produced when
// we sent it.
type RelayState struct {
	Kind     RelayStateKind
	Current  []mwire.RelayAddress
	Previous []mwire.RelayAddress

	sentAtToken ccrypto.Signature
}

// NewRelayState returns a friend's relay advertisement state before
// anything has ever been sent.
func NewRelayState() RelayState {
	return RelayState{Kind: RelayNeverSent}
}

func relayListEqual(a, b []mwire.RelayAddress) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NeedsAdvertise reports whether desired differs from the last relay set we
// told this friend about, i.e. whether the next outgoing MoveToken should
// carry opt_local_relays.
func (rs *RelayState) NeedsAdvertise(desired []mwire.RelayAddress) bool {
	if rs.Kind == RelayNeverSent {
		return len(desired) > 0
	}
	return !relayListEqual(rs.Current, desired)
}

// CommitAdvertise records that desired was just attached to an outgoing
// MoveToken whose produced signature is newToken. A friend that had never
// sent anything moves straight to LastSent, since there is no prior value
// to keep alive; one replacing an already-acknowledged set enters
// Transition until the peer acknowledges the new one.
func (rs *RelayState) CommitAdvertise(desired []mwire.RelayAddress, newToken ccrypto.Signature) {
	switch rs.Kind {
	case RelayNeverSent:
		rs.Kind = RelayLastSent
		rs.Current = desired
	default:
		rs.Previous = rs.Current
		rs.Current = desired
		rs.Kind = RelayTransition
	}
	rs.sentAtToken = newToken
}

// CompleteIfAcked advances a Transition to LastSent once oldToken (the
// old_token of an incoming MoveToken) matches the new_token we produced
// when we last advertised a relay change.
func (rs *RelayState) CompleteIfAcked(oldToken ccrypto.Signature) {
	if rs.Kind == RelayTransition && oldToken == rs.sentAtToken {
		rs.Kind = RelayLastSent
		rs.Previous = nil
	}
}
