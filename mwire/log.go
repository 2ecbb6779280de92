package mwire

import "github.com/btcsuite/btclog"

// wireLog is the logger used by this package.
var wireLog = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	wireLog = logger
}
