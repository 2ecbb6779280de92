package persist

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/mwire"
	"github.com/stretchr/testify/require"
)

func mkPK(b byte) ccrypto.PublicKey {
	var pk ccrypto.PublicKey
	pk[0] = b
	return pk
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := &NodeSnapshot{
		LocalPK:  mkPK(1),
		Sequence: 42,
		Friends: []FriendRecord{
			{
				RemotePK: mkPK(2),
				Name:     "bob",
				Disabled: false,
				RateMul:  10,
				RateAdd:  5,
				Units: []UnitRecord{
					{
						Currency:             "FST1",
						Balance:              big.NewInt(-17),
						LocalMaxDebt:         big.NewInt(1000),
						RemoteMaxDebt:        big.NewInt(2000),
						LocalRequestsStatus:  creditunit.StatusOpen,
						RemoteRequestsStatus: creditunit.StatusClosed,
					},
				},
			},
		},
	}

	raw, err := encodeSnapshot(snap)
	require.NoError(t, err)

	got, err := decodeSnapshot(raw)
	require.NoError(t, err)
	require.Equal(t, snap.LocalPK, got.LocalPK)
	require.Equal(t, snap.Sequence, got.Sequence)
	require.Len(t, got.Friends, 1)
	require.Equal(t, snap.Friends[0].Name, got.Friends[0].Name)
	require.Equal(t, 0, snap.Friends[0].Units[0].Balance.Cmp(got.Friends[0].Units[0].Balance))
	require.Equal(t, creditunit.StatusOpen, got.Friends[0].Units[0].LocalRequestsStatus)
}

func TestMutationRoundTrip(t *testing.T) {
	cases := []Mutation{
		&AddFriendMutation{RemotePK: mkPK(3), Name: "carol"},
		&RemoveFriendMutation{RemotePK: mkPK(3)},
		&SetFriendStateMutation{RemotePK: mkPK(3), Disabled: true},
		&SetRateMutation{RemotePK: mkPK(3), Mul: 7, Add: 1},
		&CommitInvoiceMutation{InvoiceID: ccrypto.Sum512_256([]byte("inv")), Currency: "FST1", Total: big.NewInt(500)},
		&ApplyOpMutation{
			RemotePK: mkPK(4),
			Incoming: true,
			Op:       &mwire.EnableRequestsOp{CurrencyField: "FST1"},
		},
	}

	for _, m := range cases {
		raw, err := EncodedMutationBytes(m)
		require.NoError(t, err)

		got, err := DecodeMutation(bytes.NewReader(raw))
		require.NoError(t, err)
		require.Equal(t, m.Tag(), got.Tag())
	}
}

func TestBoltStoreSnapshotAndMutationLog(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBolt(dir)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.False(t, ok)

	seq1, err := store.AppendMutation(&AddFriendMutation{RemotePK: mkPK(9), Name: "dave"})
	require.NoError(t, err)
	seq2, err := store.AppendMutation(&SetFriendStateMutation{RemotePK: mkPK(9), Disabled: true})
	require.NoError(t, err)
	require.Greater(t, seq2, seq1)

	var replayed []Mutation
	require.NoError(t, store.ReplayMutations(0, func(seq uint64, m Mutation) error {
		replayed = append(replayed, m)
		return nil
	}))
	require.Len(t, replayed, 2)

	snap := &NodeSnapshot{LocalPK: mkPK(1), Sequence: seq2}
	require.NoError(t, store.SaveSnapshot(snap))

	loaded, ok, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, seq2, loaded.Sequence)

	// Everything up to seq2 was folded into the snapshot, so replaying
	// from it sees nothing left in the log.
	replayed = nil
	require.NoError(t, store.ReplayMutations(seq2, func(seq uint64, m Mutation) error {
		replayed = append(replayed, m)
		return nil
	}))
	require.Empty(t, replayed)

	require.NoError(t, store.Wipe())
	_, ok, err = store.LoadSnapshot()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseFriendDescriptor(t *testing.T) {
	pkHex := strings.Repeat("ab", 32)
	relayPKHex := strings.Repeat("cd", 32)
	input := "public_key " + pkHex + "\n" +
		"name alice\n" +
		"relay " + relayPKHex + " relay.example.com 4321\n"

	fd, err := ParseFriendDescriptor(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, "alice", fd.Name)
	require.Len(t, fd.Relays, 1)
	require.Equal(t, "relay.example.com", fd.Relays[0].Host)
	require.Equal(t, uint16(4321), fd.Relays[0].Port)
}

func TestParseFriendDescriptorRequiresPublicKey(t *testing.T) {
	_, err := ParseFriendDescriptor(strings.NewReader("name alice\n"))
	require.Error(t, err)
}
