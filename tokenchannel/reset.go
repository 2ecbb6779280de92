package tokenchannel

import (
	"fmt"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/mwire"
)

// ChooseResetTerms picks which side's locally-computed reset terms the
// channel restarts from when both peers have independently declared
// inconsistency and offered their own terms. The two sets are derived
// from the same shared history and should usually agree; when they
// don't (a true double-fault), the lexicographically smaller public key
// wins, mirroring the deterministic tie-break spec.md's worked example
// uses to decide who sends first after a reset.
func ChooseResetTerms(localPK, remotePK ccrypto.PublicKey, local, remote *mwire.ResetTerms) *mwire.ResetTerms {
	if localPK.Less(remotePK) {
		return local
	}
	return remote
}

// ApplyReset rebuilds the token channel from accepted terms, per
// spec.md §4.3's `ResetFriendChannel`: the balances terms names become
// each currency's fresh starting balance, and inconsistency_counter
// advances to terms.InconsistencyCounter.
func ApplyReset(localPK, remotePK ccrypto.PublicKey, terms *mwire.ResetTerms) (*Channel, error) {
	balances := make(map[ccrypto.Currency]*big.Int, len(terms.Balances))
	for _, cb := range terms.Balances {
		if _, dup := balances[cb.Currency]; dup {
			return nil, fmt.Errorf("tokenchannel: reset terms name currency %q twice", cb.Currency)
		}
		balances[cb.Currency] = new(big.Int).Set(cb.Balance)
	}
	return NewFromReset(localPK, remotePK, terms.InconsistencyCounter, balances), nil
}
