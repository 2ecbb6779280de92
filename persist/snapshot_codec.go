package persist

import (
	"bytes"
	"io"

	"github.com/creditmesh/meshnode/creditunit"
)

// encodeSnapshot and decodeSnapshot give both Store backends a single,
// shared on-disk/on-wire representation for NodeSnapshot, the way
// mwire.MoveToken.Encode/Decode give tokenchannel one shared wire format.

func encodeSnapshot(snap *NodeSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := writePubKey(&buf, snap.LocalPK); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, snap.Sequence); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, uint32(len(snap.Friends))); err != nil {
		return nil, err
	}
	for _, f := range snap.Friends {
		if err := encodeFriendRecord(&buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(b []byte) (*NodeSnapshot, error) {
	r := bytes.NewReader(b)
	snap := &NodeSnapshot{}
	var err error
	if snap.LocalPK, err = readPubKey(r); err != nil {
		return nil, err
	}
	if snap.Sequence, err = readUint64(r); err != nil {
		return nil, err
	}
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	snap.Friends = make([]FriendRecord, n)
	for i := range snap.Friends {
		if snap.Friends[i], err = decodeFriendRecord(r); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func encodeFriendRecord(w io.Writer, f FriendRecord) error {
	if err := writePubKey(w, f.RemotePK); err != nil {
		return err
	}
	if err := writeString(w, f.Name); err != nil {
		return err
	}
	if err := writeBool(w, f.Disabled); err != nil {
		return err
	}
	if err := writeUint32(w, f.RateMul); err != nil {
		return err
	}
	if err := writeUint32(w, f.RateAdd); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(f.Units))); err != nil {
		return err
	}
	for _, u := range f.Units {
		if err := encodeUnitRecord(w, u); err != nil {
			return err
		}
	}
	return nil
}

func decodeFriendRecord(r io.Reader) (FriendRecord, error) {
	var f FriendRecord
	var err error
	if f.RemotePK, err = readPubKey(r); err != nil {
		return f, err
	}
	if f.Name, err = readString(r); err != nil {
		return f, err
	}
	if f.Disabled, err = readBool(r); err != nil {
		return f, err
	}
	if f.RateMul, err = readUint32(r); err != nil {
		return f, err
	}
	if f.RateAdd, err = readUint32(r); err != nil {
		return f, err
	}
	n, err := readUint32(r)
	if err != nil {
		return f, err
	}
	f.Units = make([]UnitRecord, n)
	for i := range f.Units {
		if f.Units[i], err = decodeUnitRecord(r); err != nil {
			return f, err
		}
	}
	return f, nil
}

func encodeUnitRecord(w io.Writer, u UnitRecord) error {
	if err := writeCurrency(w, u.Currency); err != nil {
		return err
	}
	if err := writeSignedBig(w, u.Balance); err != nil {
		return err
	}
	if err := writeSignedBig(w, u.LocalMaxDebt); err != nil {
		return err
	}
	if err := writeSignedBig(w, u.RemoteMaxDebt); err != nil {
		return err
	}
	if err := writeBool(w, u.LocalRequestsStatus == creditunit.StatusOpen); err != nil {
		return err
	}
	return writeBool(w, u.RemoteRequestsStatus == creditunit.StatusOpen)
}

func decodeUnitRecord(r io.Reader) (UnitRecord, error) {
	var u UnitRecord
	var err error
	if u.Currency, err = readCurrency(r); err != nil {
		return u, err
	}
	if u.Balance, err = readSignedBig(r); err != nil {
		return u, err
	}
	if u.LocalMaxDebt, err = readSignedBig(r); err != nil {
		return u, err
	}
	if u.RemoteMaxDebt, err = readSignedBig(r); err != nil {
		return u, err
	}
	localOpen, err := readBool(r)
	if err != nil {
		return u, err
	}
	remoteOpen, err := readBool(r)
	if err != nil {
		return u, err
	}
	u.LocalRequestsStatus = creditunit.StatusClosed
	if localOpen {
		u.LocalRequestsStatus = creditunit.StatusOpen
	}
	u.RemoteRequestsStatus = creditunit.StatusClosed
	if remoteOpen {
		u.RemoteRequestsStatus = creditunit.StatusOpen
	}
	return u, nil
}
