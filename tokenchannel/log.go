// Package tokenchannel implements the per-friend token channel of
// spec.md §4.2/§4.3: a map of mutual-credit units keyed by currency, the
// single-token-at-a-time discipline, and the MoveToken processing
// algorithm that keeps both sides' view of the shared state byte-for-byte
// identical.
package tokenchannel

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
