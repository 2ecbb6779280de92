package ccrypto

import "crypto/rand"

// PlainLock is a randomly generated preimage.
type PlainLock [32]byte

// HashedLock commits to a PlainLock without revealing it. The protocol's
// hop-by-hop atomicity (spec.md GLOSSARY: "Hashed lock / plain lock")
// relies on hash(plain) == hashed being cheap to check and hard to invert.
type HashedLock = Hash

// NewPlainLock generates a fresh random plain lock.
func NewPlainLock() (PlainLock, error) {
	var p PlainLock
	if _, err := rand.Read(p[:]); err != nil {
		return p, err
	}
	return p, nil
}

// Hash returns the hashed lock committing to this plain lock.
func (p PlainLock) Hash() HashedLock {
	return Sum512_256(p[:])
}
