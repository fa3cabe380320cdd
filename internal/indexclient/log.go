package indexclient

import "github.com/btcsuite/btclog"

var idxLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	idxLog = logger
}
