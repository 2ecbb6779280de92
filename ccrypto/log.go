package ccrypto

import "github.com/btcsuite/btclog"

// ccLog is the logger used by this package. It is set by the main
// application via UseLogger, leaving a disabled logger as the default so
// that the package is safe to import from tests without any setup.
var ccLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package. Calling
// this function is optional; if it is not called, a default disabled
// logger will be used.
func UseLogger(logger btclog.Logger) {
	ccLog = logger
}
