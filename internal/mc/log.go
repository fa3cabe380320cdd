package mc

import "github.com/btcsuite/btclog"

var mcLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	mcLog = logger
}
