package creditunit

import "github.com/btcsuite/btclog"

// cuLog is the logger used by this package.
var cuLog = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	cuLog = logger
}
