// Package funder is the engine of spec.md §4.4: it owns every friend,
// multiplexes control/comm/liveness input, drives the RequestSendFunds /
// ResponseSendFunds / CancelSendFunds / CollectSendFunds lifecycle across
// the forwarding index, and aggregates buyer-side payments into
// MultiCommits.
package funder

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
