package main

import (
	"os"

	"github.com/btcsuite/btclog"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/creditunit"
	"github.com/creditmesh/meshnode/friend"
	"github.com/creditmesh/meshnode/funder"
	"github.com/creditmesh/meshnode/invoice"
	"github.com/creditmesh/meshnode/mwire"
	"github.com/creditmesh/meshnode/persist"
	"github.com/creditmesh/meshnode/tokenchannel"
)

// backendLog fans every subsystem's logger out to stdout, the same
// single-backend-many-taggged-loggers shape lnd.go's own backendLog uses.
var backendLog = btclog.NewBackend(os.Stdout)

var mshdLog = backendLog.Logger("MSHD")

// subsystemLoggers names every package that exposes a package-level
// UseLogger, so setLogLevels below can set them all at once from the
// --loglevel flag.
var subsystemLoggers = map[string]btclog.Logger{
	"MSHD": mshdLog,
	"CCRY": backendLog.Logger("CCRY"),
	"CRDU": backendLog.Logger("CRDU"),
	"MWIR": backendLog.Logger("MWIR"),
	"TKCH": backendLog.Logger("TKCH"),
	"FRND": backendLog.Logger("FRND"),
	"FNDR": backendLog.Logger("FNDR"),
	"INVC": backendLog.Logger("INVC"),
	"PRST": backendLog.Logger("PRST"),
}

// useLoggers wires every subsystemLoggers entry into its owning package.
func useLoggers() {
	ccrypto.UseLogger(subsystemLoggers["CCRY"])
	creditunit.UseLogger(subsystemLoggers["CRDU"])
	mwire.UseLogger(subsystemLoggers["MWIR"])
	tokenchannel.UseLogger(subsystemLoggers["TKCH"])
	friend.UseLogger(subsystemLoggers["FRND"])
	funder.UseLogger(subsystemLoggers["FNDR"])
	invoice.UseLogger(subsystemLoggers["INVC"])
	persist.UseLogger(subsystemLoggers["PRST"])
}

// setLogLevels applies levelStr (e.g. "info", "debug") to every subsystem
// logger.
func setLogLevels(levelStr string) {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		level = btclog.LevelInfo
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
