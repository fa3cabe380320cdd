package storage

import "github.com/btcsuite/btclog"

var stgLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	stgLog = logger
}
