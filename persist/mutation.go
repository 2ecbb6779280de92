package persist

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/mwire"
)

// MutationTag is the one-byte tag prefixing every encoded Mutation, the
// same tag-prefixed-payload discipline mwire.OpTag uses for FriendTcOps.
type MutationTag byte

const (
	TagAddFriend      MutationTag = 1
	TagRemoveFriend   MutationTag = 2
	TagSetFriendState MutationTag = 3
	TagSetRate        MutationTag = 4
	TagApplyOp        MutationTag = 5
	TagCommitInvoice  MutationTag = 6
)

// Mutation is one durable, replayable state change to a node's friend
// graph or a channel's mutual-credit units. appif.Server appends one for
// each request kind that has a Mutation type before reporting success, and
// recovery replays them in order against a loaded NodeSnapshot.
type Mutation interface {
	Tag() MutationTag
	Encode(w io.Writer) error
	decode(r io.Reader) error
}

// EncodeMutation serializes m as tag-byte ‖ payload.
func EncodeMutation(w io.Writer, m Mutation) error {
	if _, err := w.Write([]byte{byte(m.Tag())}); err != nil {
		return err
	}
	return m.Encode(w)
}

// DecodeMutation reads one tag-prefixed mutation from r.
func DecodeMutation(r io.Reader) (Mutation, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, err
	}
	tag := MutationTag(tagBuf[0])

	var m Mutation
	switch tag {
	case TagAddFriend:
		m = &AddFriendMutation{}
	case TagRemoveFriend:
		m = &RemoveFriendMutation{}
	case TagSetFriendState:
		m = &SetFriendStateMutation{}
	case TagSetRate:
		m = &SetRateMutation{}
	case TagApplyOp:
		m = &ApplyOpMutation{}
	case TagCommitInvoice:
		m = &CommitInvoiceMutation{}
	default:
		return nil, fmt.Errorf("persist: unknown mutation tag %d", tag)
	}
	if err := m.decode(r); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodedMutationBytes returns the tag-prefixed encoding of m as a
// standalone byte slice, for backends that store one blob per log entry
// (boltstore.go) rather than a single append-only stream.
func EncodedMutationBytes(m Mutation) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeMutation(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- AddFriend / RemoveFriend ---

// AddFriendMutation records funder.Funder.AddFriend.
type AddFriendMutation struct {
	RemotePK ccrypto.PublicKey
	Name     string
}

func (m *AddFriendMutation) Tag() MutationTag { return TagAddFriend }

func (m *AddFriendMutation) Encode(w io.Writer) error {
	if err := writePubKey(w, m.RemotePK); err != nil {
		return err
	}
	return writeString(w, m.Name)
}

func (m *AddFriendMutation) decode(r io.Reader) error {
	var err error
	if m.RemotePK, err = readPubKey(r); err != nil {
		return err
	}
	m.Name, err = readString(r)
	return err
}

// RemoveFriendMutation records funder.Funder.RemoveFriend.
type RemoveFriendMutation struct {
	RemotePK ccrypto.PublicKey
}

func (m *RemoveFriendMutation) Tag() MutationTag { return TagRemoveFriend }

func (m *RemoveFriendMutation) Encode(w io.Writer) error {
	return writePubKey(w, m.RemotePK)
}

func (m *RemoveFriendMutation) decode(r io.Reader) error {
	var err error
	m.RemotePK, err = readPubKey(r)
	return err
}

// --- SetFriendState (Enable/Disable) ---

// SetFriendStateMutation records funder.Funder.EnableFriend/DisableFriend.
type SetFriendStateMutation struct {
	RemotePK ccrypto.PublicKey
	Disabled bool
}

func (m *SetFriendStateMutation) Tag() MutationTag { return TagSetFriendState }

func (m *SetFriendStateMutation) Encode(w io.Writer) error {
	if err := writePubKey(w, m.RemotePK); err != nil {
		return err
	}
	return writeBool(w, m.Disabled)
}

func (m *SetFriendStateMutation) decode(r io.Reader) error {
	var err error
	if m.RemotePK, err = readPubKey(r); err != nil {
		return err
	}
	m.Disabled, err = readBool(r)
	return err
}

// --- SetRate ---

// SetRateMutation records a change to a friend's forwarding fee schedule
// (friend.Rate).
type SetRateMutation struct {
	RemotePK ccrypto.PublicKey
	Mul      uint32
	Add      uint32
}

func (m *SetRateMutation) Tag() MutationTag { return TagSetRate }

func (m *SetRateMutation) Encode(w io.Writer) error {
	if err := writePubKey(w, m.RemotePK); err != nil {
		return err
	}
	if err := writeUint32(w, m.Mul); err != nil {
		return err
	}
	return writeUint32(w, m.Add)
}

func (m *SetRateMutation) decode(r io.Reader) error {
	var err error
	if m.RemotePK, err = readPubKey(r); err != nil {
		return err
	}
	if m.Mul, err = readUint32(r); err != nil {
		return err
	}
	m.Add, err = readUint32(r)
	return err
}

// --- ApplyOp ---

// ApplyOpMutation records one mwire.Op applied to (RemotePK, op.Currency())
// in the direction Incoming selects, the same Outgoing/Incoming direction
// creditunit.Op.Apply takes. Replaying these is how a recovered node rebuilds pending
// transactions and balances between the last snapshot and the crash.
type ApplyOpMutation struct {
	RemotePK ccrypto.PublicKey
	Incoming bool
	Op       mwire.Op
}

func (m *ApplyOpMutation) Tag() MutationTag { return TagApplyOp }

func (m *ApplyOpMutation) Encode(w io.Writer) error {
	if err := writePubKey(w, m.RemotePK); err != nil {
		return err
	}
	if err := writeBool(w, m.Incoming); err != nil {
		return err
	}
	return mwire.EncodeOp(w, m.Op)
}

func (m *ApplyOpMutation) decode(r io.Reader) error {
	var err error
	if m.RemotePK, err = readPubKey(r); err != nil {
		return err
	}
	if m.Incoming, err = readBool(r); err != nil {
		return err
	}
	m.Op, err = mwire.DecodeOp(r)
	return err
}

// --- CommitInvoice ---

// CommitInvoiceMutation records funder.Funder.CommitInvoice finalizing an
// invoice as paid.
type CommitInvoiceMutation struct {
	InvoiceID ccrypto.Hash
	Currency  ccrypto.Currency
	Total     *big.Int
}

func (m *CommitInvoiceMutation) Tag() MutationTag { return TagCommitInvoice }

func (m *CommitInvoiceMutation) Encode(w io.Writer) error {
	if err := writeHash(w, m.InvoiceID); err != nil {
		return err
	}
	if err := writeCurrency(w, m.Currency); err != nil {
		return err
	}
	return writeSignedBig(w, m.Total)
}

func (m *CommitInvoiceMutation) decode(r io.Reader) error {
	var err error
	if m.InvoiceID, err = readHash(r); err != nil {
		return err
	}
	if m.Currency, err = readCurrency(r); err != nil {
		return err
	}
	m.Total, err = readSignedBig(r)
	return err
}
