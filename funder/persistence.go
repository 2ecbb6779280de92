package funder

import (
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/persist"
)

// Snapshot captures every friend's reconstructable state as a
// persist.NodeSnapshot, for a Store to checkpoint (spec.md §5). In-flight
// pending transactions are intentionally omitted: they are rebuilt by
// replaying the ApplyOp mutations recorded since the snapshot's sequence,
// the same clone-try-commit discipline tokenchannel already uses for a
// single MoveToken.
func (fd *Funder) Snapshot(sequence uint64) *persist.NodeSnapshot {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	snap := &persist.NodeSnapshot{
		LocalPK:  fd.LocalPK,
		Sequence: sequence,
		Friends:  make([]persist.FriendRecord, 0, len(fd.Friends)),
	}
	for _, f := range fd.Friends {
		snap.Friends = append(snap.Friends, friendRecord(f))
	}
	return snap
}

func friendRecord(f *friend.Friend) persist.FriendRecord {
	rec := persist.FriendRecord{
		RemotePK: f.RemotePK,
		Name:     f.Name,
		Disabled: f.Status == friend.StatusDisabled,
		RateMul:  f.Rate.Mul,
		RateAdd:  f.Rate.Add,
	}
	if f.ChannelStatus.Kind != friend.ChannelConsistent {
		return rec
	}
	for _, cur := range f.Currencies() {
		unit := f.ChannelStatus.Channel.GetOrCreateUnit(cur)
		rec.Units = append(rec.Units, persist.UnitRecord{
			Currency:             cur,
			Balance:              unit.Balance,
			LocalMaxDebt:         unit.LocalMaxDebt,
			RemoteMaxDebt:        unit.RemoteMaxDebt,
			LocalRequestsStatus:  unit.LocalRequestsStatus,
			RemoteRequestsStatus: unit.RemoteRequestsStatus,
		})
	}
	return rec
}

// Restore rebuilds fd's friend graph from a persist.NodeSnapshot loaded at
// startup, as the first step of spec.md §5's "load snapshot, replay
// mutations since" recovery sequence. It must be called on a fresh Funder
// before any mutation is replayed with ApplyMutation.
func (fd *Funder) Restore(snap *persist.NodeSnapshot) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	for _, rec := range snap.Friends {
		f := friend.New(fd.LocalPK, rec.RemotePK, rec.Name)
		if rec.Disabled {
			f.Status = friend.StatusDisabled
		}
		f.Rate = friend.Rate{Mul: rec.RateMul, Add: rec.RateAdd}
		for _, u := range rec.Units {
			unit := f.ChannelStatus.Channel.GetOrCreateUnit(u.Currency)
			unit.Balance = u.Balance
			unit.LocalMaxDebt = u.LocalMaxDebt
			unit.RemoteMaxDebt = u.RemoteMaxDebt
			unit.LocalRequestsStatus = u.LocalRequestsStatus
			unit.RemoteRequestsStatus = u.RemoteRequestsStatus
		}
		fd.Friends[rec.RemotePK] = f
		fd.SeqFriends.Update(rec.RemotePK)
	}
}

// ApplyMutation replays one persist.Mutation recorded after the loaded
// snapshot's sequence. Recovery calls this once per entry returned by
// Store.ReplayMutations, in order.
func (fd *Funder) ApplyMutation(m persist.Mutation) error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	switch mm := m.(type) {
	case *persist.AddFriendMutation:
		if _, ok := fd.Friends[mm.RemotePK]; !ok {
			f := friend.New(fd.LocalPK, mm.RemotePK, mm.Name)
			fd.Friends[mm.RemotePK] = f
			fd.SeqFriends.Update(mm.RemotePK)
		}
		return nil

	case *persist.RemoveFriendMutation:
		delete(fd.Friends, mm.RemotePK)
		fd.SeqFriends.Remove(mm.RemotePK)
		return nil

	case *persist.SetFriendStateMutation:
		f, ok := fd.Friends[mm.RemotePK]
		if !ok {
			return nil
		}
		if mm.Disabled {
			f.Status = friend.StatusDisabled
		} else {
			f.Status = friend.StatusEnabled
		}
		return nil

	case *persist.SetRateMutation:
		f, ok := fd.Friends[mm.RemotePK]
		if !ok {
			return nil
		}
		f.Rate = friend.Rate{Mul: mm.Mul, Add: mm.Add}
		return nil

	case *persist.ApplyOpMutation:
		f, ok := fd.Friends[mm.RemotePK]
		if !ok {
			return nil
		}
		if f.ChannelStatus.Kind != friend.ChannelConsistent {
			return nil
		}
		credOp, err := mm.Op.ToCredit()
		if err != nil {
			return err
		}
		dir := friendDirection(mm.Incoming)
		unit := f.ChannelStatus.Channel.GetOrCreateUnit(mm.Op.Currency())
		return credOp.Apply(unit, dir)

	case *persist.CommitInvoiceMutation:
		if fd.Invoices != nil {
			return fd.Invoices.MarkCommitted(mm.InvoiceID)
		}
		return nil

	default:
		return nil
	}
}

func friendDirection(incoming bool) creditunit.Direction {
	if incoming {
		return creditunit.Incoming
	}
	return creditunit.Outgoing
}
