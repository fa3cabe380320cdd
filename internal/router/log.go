package router

import "github.com/btcsuite/btclog"

var rtrLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	rtrLog = logger
}
