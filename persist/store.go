package persist

import (
	"math/big"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
)

// UnitRecord is the reconstructable balance-sheet state of one
// (friend, currency) mutual-credit unit -- everything CheckInvariants
// needs, minus the in-flight pending_transactions maps, which are
// rebuilt by replaying the ApplyOp mutations recorded since the snapshot
// (spec.md §5: "Persisted state layout").
type UnitRecord struct {
	Currency             ccrypto.Currency
	Balance              *big.Int
	LocalMaxDebt         *big.Int
	RemoteMaxDebt        *big.Int
	LocalRequestsStatus  creditunit.RequestsStatus
	RemoteRequestsStatus creditunit.RequestsStatus
}

// FriendRecord is the durable shape of one friend relationship.
type FriendRecord struct {
	RemotePK ccrypto.PublicKey
	Name     string
	Disabled bool
	RateMul  uint32
	RateAdd  uint32
	Units    []UnitRecord
}

// NodeSnapshot is the atomic, whole-node checkpoint a Store keeps: every
// friend's reconstructable state as of the mutation log offset Sequence.
// A node recovers by loading the latest NodeSnapshot, rebuilding its
// funder.Funder from it, and then replaying every mutation recorded after
// Sequence (spec.md §5's "one writer via a mutation channel,
// crash-consistent replay").
type NodeSnapshot struct {
	LocalPK  ccrypto.PublicKey
	Friends  []FriendRecord
	Sequence uint64
}

// Store is the durability seam beneath funder.Funder. Exactly one process
// holds a Store open for writing at a time (see the cluster package for
// the lock that enforces this across an HA pair); appif.Server appends a
// Mutation here before reporting success for the requests that have a
// Mutation type (friend add/remove/state/rate, CreateTransaction,
// CommitInvoice), so a crash between the two loses none of those (spec.md
// §5). Other state changes are not logged here. A standby replica may open
// the same backing file/database
// read-only to tail the log without racing the active writer.
type Store interface {
	// LoadSnapshot returns the most recently saved NodeSnapshot, or
	// ok=false for a store that has never been written to.
	LoadSnapshot() (snap *NodeSnapshot, ok bool, err error)

	// SaveSnapshot overwrites the checkpoint with snap and discards every
	// mutation at or before snap.Sequence, since the snapshot already
	// reflects them.
	SaveSnapshot(snap *NodeSnapshot) error

	// AppendMutation durably records m as the next mutation-log entry and
	// returns its sequence number.
	AppendMutation(m Mutation) (seq uint64, err error)

	// ReplayMutations calls fn once per mutation recorded strictly after
	// fromSeq, in ascending sequence order.
	ReplayMutations(fromSeq uint64, fn func(seq uint64, m Mutation) error) error

	// Wipe deletes all persisted state. Used by tests.
	Wipe() error

	Close() error
}
