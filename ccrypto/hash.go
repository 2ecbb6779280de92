package ccrypto

import (
	"crypto/sha512"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Hash is a 32-byte digest. Every 32-byte quantity the protocol carries
// (token hashes, request ids, invoice ids, hashed locks, reset tokens) uses
// this type, re-using btcd's chainhash.Hash purely for its [32]byte
// layout and hex String()/NewHash ergonomics -- the hashing itself is
// always sha512/256 per spec.md §4.3/§4.6, never btcd's own double-sha256.
type Hash = chainhash.Hash

// ZeroHash is the all-zero digest, used as the initial "old_token" of a
// token channel that has never exchanged a MoveToken.
var ZeroHash Hash

// Sum512_256 computes sha512/256 over the concatenation of buf, matching
// every "sha512/256(...)" occurrence in spec.md exactly.
func Sum512_256(buf ...[]byte) Hash {
	h := sha512.New512_256()
	for _, b := range buf {
		h.Write(b)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// tagged hashes the components together with a distinguishing domain tag
// as its own first input, i.e. sha512/256(sha512/256(tag) ‖ rest...).
// This is the recurring "sha512/256("TAG") ‖ ..." shape used by the
// move-token, response, and receipt signature buffers.
func tagged(tag string, buf ...[]byte) Hash {
	tagHash := Sum512_256([]byte(tag))
	all := make([][]byte, 0, len(buf)+1)
	all = append(all, tagHash[:])
	all = append(all, buf...)
	return Sum512_256(all...)
}
