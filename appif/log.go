package appif

import "github.com/btcsuite/btclog"

var appLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	appLog = logger
}
