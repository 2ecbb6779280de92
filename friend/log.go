// Package friend implements the per-friend state of spec.md §3/§4.4: one
// token channel plus the three priority queues and desired-state knobs
// that feed it, together with the rate/fee formula and the relay
// advertisement tracking a friend carries independently of any single
// currency.
package friend

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
