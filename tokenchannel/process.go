package tokenchannel

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/mwire"
)

// Outcome classifies the result of ProcessIncoming, per spec.md §4.3.
type Outcome uint8

const (
	// OutcomeApplied means every operation in M committed; direction is
	// now Incoming again (our turn).
	OutcomeApplied Outcome = iota
	// OutcomeDuplicateIgnored means M repeated our own last outbound
	// token and was silently dropped.
	OutcomeDuplicateIgnored
	// OutcomeRetransmit means the peer is asking us to resend our
	// pending outgoing MoveToken unchanged.
	OutcomeRetransmit
	// OutcomeInconsistent means M could not be reconciled with our
	// chain position or info_hash; the channel now needs a reset.
	OutcomeInconsistent
)

// ProcessResult reports what ProcessIncoming decided, and carries
// whatever the caller needs to act on it.
type ProcessResult struct {
	Outcome Outcome

	// Retransmit is set (alongside OutcomeRetransmit) to the MoveToken
	// the caller should re-send verbatim.
	Retransmit *mwire.MoveToken

	// ResetTerms is set (alongside OutcomeInconsistent) to the signed
	// terms we offer the peer to resolve the inconsistency.
	ResetTerms *mwire.ResetTerms
}

// ProcessIncoming runs the four-step algorithm of spec.md §4.3 against an
// incoming MoveToken from the peer.
func (c *Channel) ProcessIncoming(m *mwire.MoveToken) (*ProcessResult, error) {
	// Step 1: signature.
	buf, err := m.SignatureBuff()
	if err != nil {
		return nil, err
	}
	if !ccrypto.Verify(c.RemotePK, buf, m.NewToken) {
		return &ProcessResult{Outcome: OutcomeInconsistent,
			ResetTerms: c.buildResetTerms()}, nil
	}

	// Step 2: chain position.
	switch {
	case m.NewToken == c.PrevNewToken && c.Direction == DirOutgoingPending:
		return &ProcessResult{Outcome: OutcomeDuplicateIgnored}, nil

	case m.OldToken == c.PrevNewToken:
		// Expected next token from the peer; fall through to step 3.

	case c.Direction == DirOutgoingPending && c.HasLastIncoming && m.OldToken == c.LastIncomingOldToken:
		return &ProcessResult{Outcome: OutcomeRetransmit, Retransmit: c.PendingOutgoing}, nil

	default:
		terms := c.buildResetTerms()
		return &ProcessResult{Outcome: OutcomeInconsistent, ResetTerms: terms}, nil
	}

	// Step 3: info_hash. The peer hashed TokenInfo from its own side of the
	// channel (see tokenInfo), so it is rebuilt here with the two keys
	// swapped and every balance negated.
	info := c.tokenInfo()
	info.LocalPK, info.RemotePK = info.RemotePK, info.LocalPK
	for i := range info.Balances {
		info.Balances[i].Balance = new(big.Int).Neg(info.Balances[i].Balance)
	}
	wantHash, err := info.Hash()
	if err != nil {
		return nil, err
	}
	if wantHash != m.InfoHash {
		terms := c.buildResetTerms()
		return &ProcessResult{Outcome: OutcomeInconsistent, ResetTerms: terms}, nil
	}

	// Step 4: apply operations atomically on a clone.
	units := c.cloneUnits()
	seen := make(map[ccrypto.Hash]bool)
	for _, op := range m.Operations {
		if id, ok := requestIDOf(op); ok {
			if seen[id] {
				return &ProcessResult{Outcome: OutcomeInconsistent,
					ResetTerms: c.buildResetTerms()}, nil
			}
			seen[id] = true
		}

		unit, ok := units[op.Currency()]
		if !ok {
			unit = creditunit.New(op.Currency())
			units[op.Currency()] = unit
		}

		credOp, err := op.ToCredit()
		if err != nil {
			return nil, err
		}
		if err := credOp.Apply(unit, creditunit.Incoming); err != nil {
			return &ProcessResult{Outcome: OutcomeInconsistent,
				ResetTerms: c.buildResetTerms()}, nil
		}
	}

	mHash, err := hashMoveToken(m)
	if err != nil {
		return nil, err
	}

	c.Units = units
	c.Direction = DirIncoming
	c.PendingOutgoing = nil
	c.PrevNewToken = m.NewToken
	c.HasLastIncoming = true
	c.LastIncomingOldToken = m.OldToken
	c.LastIncomingMoveTokenHashed = mHash
	c.MoveTokenCounter++

	return &ProcessResult{Outcome: OutcomeApplied}, nil
}

// hashMoveToken computes hash(M), used for last_incoming_move_token_hashed.
func hashMoveToken(m *mwire.MoveToken) (ccrypto.Hash, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return ccrypto.Hash{}, err
	}
	return ccrypto.Sum512_256(buf.Bytes()), nil
}

// RemoteRelays returns the relay list M advertised, if any, so the
// friend layer can update its remote_relays after a successful apply.
func RemoteRelays(m *mwire.MoveToken) ([]mwire.RelayAddress, bool) {
	if m.OptLocalRelays == nil {
		return nil, false
	}
	return m.OptLocalRelays, true
}

// buildResetTerms computes local_reset_terms per spec.md §4.3: bumps
// inconsistency_counter, commits balance_for_reset per currency, and
// derives reset_token from PrevNewToken plus those balances.
func (c *Channel) buildResetTerms() *mwire.ResetTerms {
	balances := make([]mwire.CurrencyBalance, 0, len(c.Units))
	for _, cur := range c.activeCurrencies() {
		balances = append(balances, mwire.CurrencyBalance{
			Currency: cur,
			Balance:  c.Units[cur].BalanceForReset(),
		})
	}

	var balBuf bytes.Buffer
	if err := mwire.EncodeBalances(&balBuf, balances); err != nil {
		// EncodeBalances only fails on writer errors; a bytes.Buffer
		// never returns one.
		panic(fmt.Sprintf("tokenchannel: encode balances: %v", err))
	}

	resetToken := ccrypto.ResetToken(c.PrevNewToken, balBuf.Bytes())

	return &mwire.ResetTerms{
		ResetToken:           resetToken,
		InconsistencyCounter: c.InconsistencyCounter + 1,
		Balances:             balances,
	}
}
