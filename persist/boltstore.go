package persist

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const (
	boltDBName           = "meshnode.db"
	boltDBFilePermission = 0600
)

var (
	snapshotBucket = []byte("snapshot")
	snapshotKey    = []byte("node")
	mutationBucket = []byte("mutations")
)

// dbVersions mirrors channeldb/db.go's migration list: the base schema
// requires no migration, and a future on-disk format change adds an entry
// here rather than a breaking rewrite.
var dbVersions = []struct {
	number    uint32
	migration func(*bolt.Tx) error
}{
	{number: 0, migration: nil},
}

const boltSchemaVersion = uint32(len(dbVersions) - 1)

var schemaVersionKey = []byte("schema_version")

// BoltStore is the default, single-node persist.Store backend: one
// bbolt file holding a snapshot bucket and an append-only mutation
// bucket keyed by big-endian sequence number, exactly as
// channeldb/db.go's bolt.Open/createChannelDB/Wipe trio lays out lnd's
// channel.db.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if necessary) the bbolt-backed store rooted at
// dataDir.
func OpenBolt(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}
	path := filepath.Join(dataDir, boltDBName)

	db, err := bolt.Open(path, boltDBFilePermission, nil)
	if err != nil {
		return nil, err
	}

	s := &BoltStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(snapshotBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(mutationBucket); err != nil {
			return err
		}

		b := tx.Bucket(snapshotBucket)
		if b.Get(schemaVersionKey) == nil {
			var v [4]byte
			binary.BigEndian.PutUint32(v[:], boltSchemaVersion)
			return b.Put(schemaVersionKey, v[:])
		}
		return nil
	})
}

// LoadSnapshot implements Store.
func (s *BoltStore) LoadSnapshot() (*NodeSnapshot, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotBucket).Get(snapshotKey)
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// SaveSnapshot implements Store: it replaces the checkpoint and discards
// every mutation at or before snap.Sequence in the same transaction, so a
// crash mid-save never leaves the snapshot and log offset out of sync.
func (s *BoltStore) SaveSnapshot(snap *NodeSnapshot) error {
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(snapshotBucket).Put(snapshotKey, raw); err != nil {
			return err
		}
		mb := tx.Bucket(mutationBucket)
		c := mb.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if binary.BigEndian.Uint64(k) > snap.Sequence {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendMutation implements Store.
func (s *BoltStore) AppendMutation(m Mutation) (uint64, error) {
	raw, err := EncodedMutationBytes(m)
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(mutationBucket)
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), raw)
	})
	return seq, err
}

// ReplayMutations implements Store.
func (s *BoltStore) ReplayMutations(fromSeq uint64, fn func(seq uint64, m Mutation) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(mutationBucket).Cursor()
		start := seqKey(fromSeq + 1)
		for k, v := c.Seek(start); k != nil; k, v = c.Next() {
			seq := binary.BigEndian.Uint64(k)
			m, err := DecodeMutation(bytes.NewReader(v))
			if err != nil {
				return err
			}
			if err := fn(seq, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// Wipe implements Store, mirroring channeldb.DB.Wipe's single-transaction
// bucket-delete-and-recreate.
func (s *BoltStore) Wipe() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{snapshotBucket, mutationBucket} {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.init()
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}
