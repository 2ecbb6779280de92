package creditunit

import (
	"fmt"

	"github.com/creditmesh/meshnode/ccrypto"
)

// MaxRouteLen is the maximum number of hops a RequestSendFunds route may
// name, per spec.md §4.1.
const MaxRouteLen = 32

// Route is the ordered list of public keys a forwarded request will
// traverse, from originator to destination.
type Route []ccrypto.PublicKey

// Validate enforces spec.md §4.1's route shape rules: at least 2 public
// keys, no more than MaxRouteLen, no duplicates except a single legal
// cycle where the first and last keys match and the route has at least 3
// entries.
func (r Route) Validate() error {
	if len(r) < 2 {
		return fmt.Errorf("route must contain at least 2 public keys, got %d", len(r))
	}
	if len(r) > MaxRouteLen {
		return fmt.Errorf("route length %d exceeds MAX_ROUTE_LEN %d", len(r), MaxRouteLen)
	}

	seen := make(map[ccrypto.PublicKey]int, len(r))
	for i, pk := range r {
		if firstIdx, ok := seen[pk]; ok {
			isCycle := firstIdx == 0 && i == len(r)-1
			if !isCycle {
				return fmt.Errorf("route contains duplicate public key at %d and %d", firstIdx, i)
			}
			if len(r) < 3 {
				return fmt.Errorf("cycle route must have length >= 3, got %d", len(r))
			}
			continue
		}
		seen[pk] = i
	}
	return nil
}

// IndexOf returns the position of pk in the route, or -1 if absent. When
// the route is a cycle (first == last), the first occurrence is returned.
func (r Route) IndexOf(pk ccrypto.PublicKey) int {
	for i, p := range r {
		if p == pk {
			return i
		}
	}
	return -1
}
