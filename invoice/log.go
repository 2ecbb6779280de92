// Package invoice implements the seller side of spec.md §4.4's multi-route
// payment protocol: tracking invoices this node has opened, matching
// incoming RequestSendFunds against them, and validating a buyer's
// MultiCommit before releasing the CollectSendFunds chain that pays the
// invoice.
package invoice

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
