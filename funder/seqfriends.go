package funder

import "github.com/creditmesh/meshnode/ccrypto"

// seqFriendsStaleAfter is the number of CreateTransaction cycles a
// friend's externally-supplied route may go unused before it is flagged
// stale.
const seqFriendsStaleAfter = 16

// SeqFriends tracks, per friend, how many payment cycles have passed
// since a route through it was last used. Adapted from original_source's
// seq_friends.rs `SeqMap`, which rotates which friend's capacity gets
// reported to an index server next -- out of scope here per spec.md's
// Non-goal on index-routing implementations. The same countdown-per-
// friend bookkeeping is repurposed: since routes arrive pre-computed from
// the application (RequestRoutes/the index-client overlay is also out of
// scope), this is the funder's only signal that a route it was handed a
// while ago may no longer reflect current capacity and should be
// re-requested before reuse.
type SeqFriends struct {
	countdown map[ccrypto.PublicKey]int
}

// NewSeqFriends creates an empty tracker.
func NewSeqFriends() *SeqFriends {
	return &SeqFriends{countdown: make(map[ccrypto.PublicKey]int)}
}

// Update registers pk, or refreshes its countdown if already tracked, as
// AddFriend does.
func (s *SeqFriends) Update(pk ccrypto.PublicKey) {
	s.countdown[pk] = seqFriendsStaleAfter
}

// Remove drops pk, as RemoveFriend does.
func (s *SeqFriends) Remove(pk ccrypto.PublicKey) {
	delete(s.countdown, pk)
}

// Touch marks a route through pk as just used, resetting its countdown.
func (s *SeqFriends) Touch(pk ccrypto.PublicKey) {
	if _, ok := s.countdown[pk]; ok {
		s.countdown[pk] = seqFriendsStaleAfter
	}
}

// TickAndCheckStale advances pk's countdown by one cycle and reports
// whether it has reached zero, in which case any route cached through pk
// should be treated as stale and re-requested from the application.
func (s *SeqFriends) TickAndCheckStale(pk ccrypto.PublicKey) bool {
	countdown, ok := s.countdown[pk]
	if !ok {
		return false
	}
	if countdown > 0 {
		countdown--
		s.countdown[pk] = countdown
	}
	return countdown <= 0
}
